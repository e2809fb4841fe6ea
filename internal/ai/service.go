// Package ai turns natural-language prompts into tasks through the backend,
// within the daily quota the server enforces.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hiroki-koketsu/upahead/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/hiroki-koketsu/upahead/internal/ai")

// Outcome labels passed to an OutcomeRecorder.
const (
	OutcomeSuccess  = "success"
	OutcomeBlocked  = "blocked"
	OutcomeQuota    = "quota_exceeded"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Creator submits a prompt to the AI endpoint.
type Creator interface {
	CreateFromPrompt(ctx context.Context, prompt string) (*model.AIResult, error)
}

// UserSource yields the signed-in user's id, empty when signed out.
type UserSource interface {
	UserID() string
}

// OutcomeRecorder observes every CreateTasksFromPrompt result.
type OutcomeRecorder func(ctx context.Context, outcome string)

// Service creates tasks from prompts within the daily quota.
type Service struct {
	creator Creator
	usage   UsageReader
	users   UserSource
	logger  *slog.Logger
	record  OutcomeRecorder
}

// Option configures a Service.
type Option func(*Service)

// WithOutcomeRecorder reports every prompt outcome to r.
func WithOutcomeRecorder(r OutcomeRecorder) Option {
	return func(s *Service) { s.record = r }
}

// NewService returns a Service that checks quota against usage.
func NewService(creator Creator, usage UsageReader, users UserSource, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		creator: creator,
		usage:   usage,
		users:   users,
		logger:  logger,
		record:  func(context.Context, string) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UsageInfo reads the signed-in user's counter. Without a user, without a
// record, or when the read fails the default usage is returned; a failed
// read also returns the error.
func (s *Service) UsageInfo(ctx context.Context) (model.Usage, error) {
	userID := s.users.UserID()
	if userID == "" {
		return model.DefaultUsage(), nil
	}

	rec, found, err := s.usage.Attempts(ctx, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to read AI usage, allowing",
			slog.String("user", userID),
			slog.Any("error", err),
		)
		return model.DefaultUsage(), err
	}
	if !found {
		return model.DefaultUsage(), nil
	}
	return model.UsageFromRecord(rec.Attempts, rec.Blocked), nil
}

// CreateTasksFromPrompt submits prompt for the signed-in user. A user whose
// counter is already exhausted gets a *model.QuotaError without a request
// being sent. Server failures come back as *model.ServerError classified by
// Classify; quota refusals are wrapped in *model.QuotaError with the
// refreshed usage.
func (s *Service) CreateTasksFromPrompt(ctx context.Context, prompt string) (*model.AIResult, error) {
	ctx, span := tracer.Start(ctx, "Service.CreateTasksFromPrompt")
	defer span.End()

	userID := s.users.UserID()
	if userID == "" {
		return nil, model.ErrNotAuthenticated
	}
	span.SetAttributes(attribute.String("user.id", userID))

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, model.ValidationErrors{{Field: "prompt", Message: "Prompt is required"}}
	}

	usage, _ := s.UsageInfo(ctx)
	if usage.IsBlocked {
		s.record(ctx, OutcomeBlocked)
		s.logger.InfoContext(ctx, "AI request blocked by daily limit",
			slog.String("user", userID),
			slog.Int("attempts", usage.Attempts),
		)
		return nil, &model.QuotaError{Usage: usage}
	}

	result, err := s.creator.CreateFromPrompt(ctx, prompt)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, s.failure(ctx, userID, err)
	}

	usage, _ = s.UsageInfo(ctx)
	result.RemainingAttempts = usage.Remaining
	span.SetAttributes(attribute.Int("ai.tasks", len(result.Tasks)))

	s.record(ctx, OutcomeSuccess)
	s.logger.InfoContext(ctx, "AI tasks created",
		slog.String("user", userID),
		slog.Int("tasks", len(result.Tasks)),
		slog.Int("remaining", result.RemainingAttempts),
	)
	return result, nil
}

func (s *Service) failure(ctx context.Context, userID string, err error) error {
	var se *model.ServerError
	if !errors.As(err, &se) {
		s.record(ctx, OutcomeError)
		s.logger.ErrorContext(ctx, "AI request failed", slog.String("user", userID), slog.Any("error", err))
		return fmt.Errorf("create tasks from prompt: %w", err)
	}

	se.Kind = Classify(se)
	if errors.Is(se.Kind, model.ErrQuotaExceeded) {
		usage, _ := s.UsageInfo(ctx)
		s.record(ctx, OutcomeQuota)
		s.logger.InfoContext(ctx, "AI request refused by daily limit",
			slog.String("user", userID),
			slog.Int("attempts", usage.Attempts),
		)
		return &model.QuotaError{Usage: usage, Cause: se}
	}

	s.record(ctx, OutcomeRejected)
	s.logger.WarnContext(ctx, "AI request rejected",
		slog.String("user", userID),
		slog.Int("status", se.Status),
		slog.String("code", se.Code),
		slog.String("error", se.Error()),
	)
	return se
}
