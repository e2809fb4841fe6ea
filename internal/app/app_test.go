package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/hiroki-koketsu/upahead/internal/config"
	"github.com/hiroki-koketsu/upahead/internal/model"
)

func demoConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		APIBaseURL:     "http://127.0.0.1:0/api",
		LocalStatePath: filepath.Join(t.TempDir(), "state.db"),
		DemoSecret:     "secret",
		PageSize:       10,
	}
}

func TestDemoSessionSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := demoConfig(t)

	first, err := New(ctx, cfg, logger, Hooks{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	u, err := first.Session.SignIn(ctx)
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if err := first.Store.AddTask(ctx, model.NewTask{Title: "Persisted"}); err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := New(ctx, cfg, logger, Hooks{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer second.Close()

	if got := second.Session.UserID(); got != u.ID {
		t.Fatalf("restored user = %q, want %q", got, u.ID)
	}
	tasks := second.Store.Tasks()
	if len(tasks) != 1 || tasks[0].Title != "Persisted" {
		t.Errorf("expected the persisted task, got %+v", tasks)
	}
}

func TestDemoUsageStartsAtDefault(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := New(ctx, demoConfig(t), logger, Hooks{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if _, err := a.Session.SignIn(ctx); err != nil {
		t.Fatal(err)
	}
	usage, err := a.AI.UsageInfo(ctx)
	if err != nil {
		t.Fatalf("UsageInfo: %v", err)
	}
	if usage != model.DefaultUsage() {
		t.Errorf("expected default usage, got %+v", usage)
	}
}
