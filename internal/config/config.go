package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FileEnv names the environment variable pointing at an optional YAML file.
const FileEnv = "UPAHEAD_CONFIG"

// Config holds the application configuration.
type Config struct {
	// Server settings
	ServerPort     string   `mapstructure:"server_port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// OpenTelemetry settings
	OTelEnabled  bool   `mapstructure:"otel_enabled"`
	OTLPEndpoint string `mapstructure:"otel_exporter_otlp_endpoint"`
	ServiceName  string `mapstructure:"otel_service_name"`
	Environment  string `mapstructure:"environment"`

	// Logging settings
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// Backend API
	APIBaseURL string `mapstructure:"api_base_url"`

	// Storage settings. Without a database URL the app runs in demo mode on
	// local state.
	DatabaseURL    string `mapstructure:"database_url"`
	RedisAddr      string `mapstructure:"redis_addr"`
	RedisPassword  string `mapstructure:"redis_password"`
	RedisDB        int    `mapstructure:"redis_db"`
	LocalStatePath string `mapstructure:"local_state_path"`

	// Demo identity provider
	DemoSecret string `mapstructure:"demo_secret"`

	// Task store
	PageSize        int           `mapstructure:"page_size"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

var defaults = map[string]any{
	"server_port":                 "8080",
	"allowed_origins":             []string{"*"},
	"otel_enabled":                false,
	"otel_exporter_otlp_endpoint": "localhost:4317",
	"otel_service_name":           "upahead",
	"environment":                 "development",
	"log_level":                   "info",
	"log_format":                  "text",
	"api_base_url":                "http://localhost:3000/api",
	"database_url":                "",
	"redis_addr":                  "",
	"redis_password":              "",
	"redis_db":                    0,
	"local_state_path":            "upahead.db",
	"demo_secret":                 "upahead-demo-secret",
	"page_size":                   10,
	"refresh_interval":            "5m",
}

// Load reads .env (when present), the YAML file named by UPAHEAD_CONFIG
// (when set) and the environment, in increasing priority, over defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if path := os.Getenv(FileEnv); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.AllowedOrigins = splitOrigins(cfg.AllowedOrigins)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DemoMode reports whether tasks live in local state instead of Postgres.
func (c *Config) DemoMode() bool {
	return c.DatabaseURL == ""
}

func (c *Config) validate() error {
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive, got %d", c.PageSize)
	}
	if c.RefreshInterval < 0 {
		return fmt.Errorf("refresh_interval must not be negative, got %s", c.RefreshInterval)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// splitOrigins accepts both a list and comma separated entries.
func splitOrigins(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
