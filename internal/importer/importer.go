// Package importer uploads spreadsheets of tasks to the backend and serves
// the import template.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/hiroki-koketsu/upahead/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/hiroki-koketsu/upahead/internal/importer")

// TemplateFilename is the suggested name of the downloaded template.
const TemplateFilename = "task_import_template.csv"

// AcceptedExtensions lists the spreadsheet formats the backend parses.
var AcceptedExtensions = []string{".csv", ".xlsx", ".xls"}

var templateRows = [][]string{
	{"title", "description", "issueDate", "dueDate", "subject", "completed"},
	{"Complete project proposal", "Write a detailed project proposal document", "2024-01-15", "2024-02-15", "Software Development", "false"},
	{"Review code changes", "Review and approve pending pull requests", "2024-01-20", "2024-01-25", "Software Development", "false"},
}

// Uploader sends the file to the backend.
type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (*model.ImportResult, error)
}

// Refresher reloads the task list after a successful import.
type Refresher interface {
	RefreshTasks(ctx context.Context) error
}

// Service uploads spreadsheets of tasks.
type Service struct {
	uploader  Uploader
	refresher Refresher
	logger    *slog.Logger
	onResult  func(ctx context.Context, res *model.ImportResult)
}

// Option configures a Service.
type Option func(*Service)

// WithRefresher reloads r after every successful import.
func WithRefresher(r Refresher) Option {
	return func(s *Service) { s.refresher = r }
}

// WithResultHook observes every decoded import result.
func WithResultHook(fn func(ctx context.Context, res *model.ImportResult)) Option {
	return func(s *Service) { s.onResult = fn }
}

// NewService sends files through uploader.
func NewService(uploader Uploader, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		uploader: uploader,
		logger:   logger,
		onResult: func(context.Context, *model.ImportResult) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload validates the file extension and sends the file. A result with
// Success false is returned without error; the row errors explain it.
func (s *Service) Upload(ctx context.Context, filename string, r io.Reader) (*model.ImportResult, error) {
	ctx, span := tracer.Start(ctx, "Service.Upload",
		trace.WithAttributes(attribute.String("import.filename", filename)),
	)
	defer span.End()

	if !Accepted(filename) {
		return nil, model.ValidationErrors{{
			Field:   "file",
			Message: fmt.Sprintf("unsupported file type, expected one of %s", strings.Join(AcceptedExtensions, ", ")),
		}}
	}

	res, err := s.uploader.Upload(ctx, filepath.Base(filename), r)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.logger.ErrorContext(ctx, "import upload failed", slog.String("file", filename), slog.Any("error", err))
		return nil, err
	}
	s.onResult(ctx, res)

	span.SetAttributes(
		attribute.Int("import.valid_rows", res.ValidRows),
		attribute.Int("import.invalid_rows", res.InvalidRows),
	)
	s.logger.InfoContext(ctx, "import finished",
		slog.String("file", filename),
		slog.Bool("success", res.Success),
		slog.Int("total_rows", res.TotalRows),
		slog.Int("valid_rows", res.ValidRows),
		slog.Int("invalid_rows", res.InvalidRows),
	)

	if res.Success && s.refresher != nil {
		if err := s.refresher.RefreshTasks(ctx); err != nil {
			return res, fmt.Errorf("refresh after import: %w", err)
		}
	}
	return res, nil
}

// Accepted reports whether filename has a supported extension.
func Accepted(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, a := range AcceptedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

// WriteTemplate writes the CSV import template: the header row and two
// sample tasks.
func WriteTemplate(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(templateRows); err != nil {
		return fmt.Errorf("write template: %w", err)
	}
	return nil
}
