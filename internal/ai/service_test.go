package ai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hiroki-koketsu/upahead/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type staticUser string

func (u staticUser) UserID() string { return string(u) }

// fakeCreator implements Creator for testing.
type fakeCreator struct {
	CreateFunc func(ctx context.Context, prompt string) (*model.AIResult, error)
	calls      int
}

func (f *fakeCreator) CreateFromPrompt(ctx context.Context, prompt string) (*model.AIResult, error) {
	f.calls++
	return f.CreateFunc(ctx, prompt)
}

type failingUsage struct{ err error }

func (f failingUsage) Attempts(context.Context, string) (UsageRecord, bool, error) {
	return UsageRecord{}, false, f.err
}

func TestUsageInfo(t *testing.T) {
	ctx := context.Background()
	usage := NewMemoryUsage()

	t.Run("no user", func(t *testing.T) {
		s := NewService(&fakeCreator{}, usage, staticUser(""), discardLogger())
		got, err := s.UsageInfo(ctx)
		if err != nil || got != model.DefaultUsage() {
			t.Errorf("UsageInfo() = %+v, %v", got, err)
		}
	})

	t.Run("never used", func(t *testing.T) {
		s := NewService(&fakeCreator{}, usage, staticUser("u1"), discardLogger())
		got, err := s.UsageInfo(ctx)
		if err != nil || got != model.DefaultUsage() {
			t.Errorf("UsageInfo() = %+v, %v", got, err)
		}
	})

	t.Run("partially used", func(t *testing.T) {
		usage.Set("u2", UsageRecord{Attempts: 2})
		s := NewService(&fakeCreator{}, usage, staticUser("u2"), discardLogger())
		got, _ := s.UsageInfo(ctx)
		if got != (model.Usage{Attempts: 2, Remaining: 1}) {
			t.Errorf("UsageInfo() = %+v", got)
		}
	})

	t.Run("read failure fails open", func(t *testing.T) {
		boom := errors.New("counter store down")
		s := NewService(&fakeCreator{}, failingUsage{boom}, staticUser("u1"), discardLogger())
		got, err := s.UsageInfo(ctx)
		if !errors.Is(err, boom) || got != model.DefaultUsage() {
			t.Errorf("UsageInfo() = %+v, %v", got, err)
		}
	})
}

func TestCreateTasksFromPromptQuota(t *testing.T) {
	ctx := context.Background()
	usage := NewMemoryUsage()
	creator := &fakeCreator{CreateFunc: func(context.Context, string) (*model.AIResult, error) {
		usage.Increment("u1")
		return &model.AIResult{Success: true, Message: "ok", Tasks: []model.Assignment{{ID: "a", Title: "A"}}}, nil
	}}

	var outcomes []string
	s := NewService(creator, usage, staticUser("u1"), discardLogger(),
		WithOutcomeRecorder(func(_ context.Context, o string) { outcomes = append(outcomes, o) }),
	)

	for i := 1; i <= model.DailyQuota; i++ {
		res, err := s.CreateTasksFromPrompt(ctx, "write report")
		if err != nil {
			t.Fatalf("attempt %d error = %v", i, err)
		}
		if res.RemainingAttempts != model.DailyQuota-i {
			t.Errorf("attempt %d remaining = %d", i, res.RemainingAttempts)
		}
	}

	info, _ := s.UsageInfo(ctx)
	if !info.IsBlocked || info.Remaining != 0 {
		t.Fatalf("usage after quota = %+v", info)
	}

	_, err := s.CreateTasksFromPrompt(ctx, "one more")
	if !errors.Is(err, model.ErrQuotaExceeded) {
		t.Fatalf("fourth attempt error = %v, want ErrQuotaExceeded", err)
	}
	var qe *model.QuotaError
	if !errors.As(err, &qe) || qe.Usage.Attempts != 3 {
		t.Errorf("QuotaError = %+v", qe)
	}
	if creator.calls != model.DailyQuota {
		t.Errorf("network calls = %d, want %d", creator.calls, model.DailyQuota)
	}
	if len(outcomes) != 4 || outcomes[3] != OutcomeBlocked {
		t.Errorf("outcomes = %v", outcomes)
	}
}

func TestCreateTasksFromPromptPreconditions(t *testing.T) {
	ctx := context.Background()
	creator := &fakeCreator{CreateFunc: func(context.Context, string) (*model.AIResult, error) {
		return &model.AIResult{Success: true}, nil
	}}

	s := NewService(creator, NewMemoryUsage(), staticUser(""), discardLogger())
	if _, err := s.CreateTasksFromPrompt(ctx, "hello"); !errors.Is(err, model.ErrNotAuthenticated) {
		t.Errorf("signed out error = %v", err)
	}

	s = NewService(creator, NewMemoryUsage(), staticUser("u1"), discardLogger())
	if _, err := s.CreateTasksFromPrompt(ctx, "   "); !errors.Is(err, model.ErrValidation) {
		t.Errorf("empty prompt error = %v", err)
	}
	if creator.calls != 0 {
		t.Errorf("calls = %d, want 0", creator.calls)
	}
}

func TestCreateTasksFromPromptServerQuota(t *testing.T) {
	usage := NewMemoryUsage()
	creator := &fakeCreator{CreateFunc: func(context.Context, string) (*model.AIResult, error) {
		usage.Set("u1", UsageRecord{Attempts: 3, Blocked: true})
		return nil, &model.ServerError{Status: 429, Code: CodeQuotaExceeded, Message: "Daily limit reached"}
	}}
	s := NewService(creator, usage, staticUser("u1"), discardLogger())

	_, err := s.CreateTasksFromPrompt(context.Background(), "plan my week")
	var qe *model.QuotaError
	if !errors.As(err, &qe) {
		t.Fatalf("error = %v, want *QuotaError", err)
	}
	if !qe.Usage.IsBlocked || qe.Usage.Attempts != 3 {
		t.Errorf("refreshed usage = %+v", qe.Usage)
	}
	var se *model.ServerError
	if !errors.As(err, &se) || se.Message != "Daily limit reached" {
		t.Errorf("server detail not kept: %v", err)
	}
}

func TestCreateTasksFromPromptClassification(t *testing.T) {
	tests := []struct {
		name string
		se   *model.ServerError
		want error
	}{
		{"unauthenticated", &model.ServerError{Status: 401}, model.ErrUnauthenticated},
		{"empty prompt", &model.ServerError{Status: 400, Code: CodeEmptyPrompt}, model.ErrInvalidPrompt},
		{"invalid prompt", &model.ServerError{Status: 400, Code: CodeInvalidPrompt}, model.ErrInvalidPrompt},
		{"unparseable", &model.ServerError{Status: 400, Code: CodeUnparseablePrompt}, model.ErrUnparseablePrompt},
		{"suggestion", &model.ServerError{Status: 400, Suggestion: "Add a due date"}, model.ErrUnparseablePrompt},
		{"quota by code", &model.ServerError{Status: 400, Code: CodeQuotaExceeded}, model.ErrQuotaExceeded},
		{"unavailable 503", &model.ServerError{Status: 503}, model.ErrServiceUnavailable},
		{"unavailable code", &model.ServerError{Status: 500, Code: CodeAIUnavailable}, model.ErrServiceUnavailable},
		{"generic 500", &model.ServerError{Status: 500}, model.ErrServerRejected},
		{"generic 400", &model.ServerError{Status: 400}, model.ErrServerRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.se); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}

			creator := &fakeCreator{CreateFunc: func(context.Context, string) (*model.AIResult, error) {
				return nil, tt.se
			}}
			s := NewService(creator, NewMemoryUsage(), staticUser("u1"), discardLogger())
			_, err := s.CreateTasksFromPrompt(context.Background(), "something")
			if !errors.Is(err, tt.want) {
				t.Errorf("CreateTasksFromPrompt() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCreateTasksFromPromptTransportError(t *testing.T) {
	creator := &fakeCreator{CreateFunc: func(context.Context, string) (*model.AIResult, error) {
		return nil, model.ErrRemoteUnavailable
	}}
	s := NewService(creator, NewMemoryUsage(), staticUser("u1"), discardLogger())

	_, err := s.CreateTasksFromPrompt(context.Background(), "x")
	if !errors.Is(err, model.ErrRemoteUnavailable) || errors.Is(err, model.ErrServerRejected) {
		t.Errorf("error = %v", err)
	}
}
