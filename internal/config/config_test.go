package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(FileEnv, "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "8080" || cfg.PageSize != 10 || cfg.RefreshInterval != 5*time.Minute {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.APIBaseURL != "http://localhost:3000/api" || !cfg.DemoMode() || cfg.OTelEnabled {
		t.Errorf("defaults = %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv(FileEnv, "")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("DATABASE_URL", "postgres://localhost/upahead")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("PAGE_SIZE", "25")
	t.Setenv("REFRESH_INTERVAL", "0")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ServerPort != "9090" || !cfg.OTelEnabled || cfg.DemoMode() || cfg.RedisDB != 2 || cfg.PageSize != 25 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.RefreshInterval != 0 {
		t.Errorf("RefreshInterval = %s, want 0", cfg.RefreshInterval)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://b.test" {
		t.Errorf("AllowedOrigins = %q", cfg.AllowedOrigins)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upahead.yaml")
	data := "server_port: \"7070\"\nlog_format: json\npage_size: 5\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(FileEnv, path)
	t.Setenv("PAGE_SIZE", "12")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ServerPort != "7070" || cfg.LogFormat != "json" {
		t.Errorf("file values = %+v", cfg)
	}
	if cfg.PageSize != 12 {
		t.Errorf("PageSize = %d, environment should win over the file", cfg.PageSize)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv(FileEnv, "")

	t.Run("page size", func(t *testing.T) {
		t.Setenv("PAGE_SIZE", "0")
		if _, err := Load(); err == nil {
			t.Error("Load() accepted page size 0")
		}
	})

	t.Run("log format", func(t *testing.T) {
		t.Setenv("LOG_FORMAT", "xml")
		if _, err := Load(); err == nil {
			t.Error("Load() accepted log format xml")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Setenv(FileEnv, filepath.Join(t.TempDir(), "nope.yaml"))
		if _, err := Load(); err == nil {
			t.Error("Load() accepted a missing config file")
		}
	})
}
