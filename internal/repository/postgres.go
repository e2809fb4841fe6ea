package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hiroki-koketsu/upahead/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	seq         BIGSERIAL UNIQUE,
	id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id     TEXT NOT NULL,
	title       TEXT NOT NULL,
	description TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT date_trunc('milliseconds', now()),
	issue_date  TIMESTAMPTZ,
	due_date    TIMESTAMPTZ,
	completed   BOOLEAN NOT NULL DEFAULT FALSE,
	important   BOOLEAN NOT NULL DEFAULT FALSE,
	subject     TEXT,
	tags        TEXT[] NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS tasks_user_seq_idx ON tasks (user_id, seq);

CREATE TABLE IF NOT EXISTS ai_usage (
	user_id    TEXT PRIMARY KEY,
	attempts   INT NOT NULL DEFAULT 0,
	blocked    BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// OpenPostgres creates a connection pool and verifies the server answers.
func OpenPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w: %w", model.ErrRemoteUnavailable, err)
	}
	return pool, nil
}

// EnsureSchema creates the task and AI usage tables when missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PostgresRepository stores tasks in PostgreSQL. The seq column gives the
// collection its natural order; the cursor is the id of a row.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository wraps an open pool.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectPage = `
SELECT id::text, user_id, title, COALESCE(description, ''), created_at,
       issue_date, due_date, completed, important, COALESCE(subject, ''), tags
FROM tasks
WHERE user_id = $1 AND seq > $2
ORDER BY seq
LIMIT $3`

const selectCursor = `SELECT seq FROM tasks WHERE id::text = $1 AND user_id = $2`

// FetchPage returns one page of the user's tasks.
func (r *PostgresRepository) FetchPage(ctx context.Context, userID string, pageSize int, cursor Cursor) (Page, error) {
	ctx, span := tracer.Start(ctx, "PostgresRepository.FetchPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page.size", pageSize),
			attribute.Bool("page.resumed", cursor != ""),
		),
	)
	defer span.End()

	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var after int64
	restarted := false
	if cursor != "" {
		err := r.db.QueryRow(ctx, selectCursor, string(cursor), userID).Scan(&after)
		switch {
		case IsNoRows(err):
			restarted = true
		case err != nil:
			span.SetStatus(codes.Error, err.Error())
			return Page{}, fmt.Errorf("resolve cursor: %w", err)
		}
	}

	rows, err := r.db.Query(ctx, selectPage, userID, after, pageSize+1)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Page{}, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var docs []model.Task
	for rows.Next() {
		var t model.Task
		if err := rows.Scan(
			&t.ID,
			&t.UserID,
			&t.Title,
			&t.Description,
			&t.CreatedAt,
			&t.IssueDate,
			&t.DueDate,
			&t.Completed,
			&t.Important,
			&t.Subject,
			&t.Tags,
		); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return Page{}, fmt.Errorf("scan task: %w", err)
		}
		t.CreatedAt = model.Millis(t.CreatedAt)
		t.IssueDate = model.MillisPtr(t.IssueDate)
		t.DueDate = model.MillisPtr(t.DueDate)
		if t.Tags == nil {
			t.Tags = []string{}
		}
		docs = append(docs, t)
	}
	if err := rows.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Page{}, fmt.Errorf("read tasks: %w", err)
	}

	// The query already resumed after the cursor.
	page := Paginate(docs, pageSize, "")
	page.Restarted = restarted
	span.SetAttributes(
		attribute.Int("task.count", len(page.Tasks)),
		attribute.Bool("page.has_more", page.HasMore),
		attribute.Bool("page.restarted", restarted),
	)
	return page, nil
}

// Insert adds a task and returns the generated id.
func (r *PostgresRepository) Insert(ctx context.Context, in model.NewTask) (string, error) {
	ctx, span := tracer.Start(ctx, "PostgresRepository.Insert",
		trace.WithAttributes(attribute.String("task.title", in.Title)),
	)
	defer span.End()

	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}

	var id string
	err := r.db.QueryRow(ctx,
		`INSERT INTO tasks (user_id, title, description, issue_date, due_date, completed, important, subject, tags)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id::text`,
		in.UserID,
		in.Title,
		nullString(in.Description),
		model.MillisPtr(in.IssueDate),
		model.MillisPtr(in.DueDate),
		in.Completed,
		in.Important,
		nullString(in.Subject),
		tags,
	).Scan(&id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("insert task: %w", err)
	}

	span.SetAttributes(attribute.String("task.id", id))
	return id, nil
}

// Update writes the fields set in the patch. A cleared date becomes NULL.
func (r *PostgresRepository) Update(ctx context.Context, id string, patch model.TaskPatch) error {
	ctx, span := tracer.Start(ctx, "PostgresRepository.Update",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	query, args := buildUpdate(id, patch)
	if query == "" {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tasks WHERE id::text = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check task: %w", err)
		}
		if !exists {
			return model.ErrTaskNotFound
		}
		return nil
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetAttributes(attribute.Bool("task.found", false))
		return model.ErrTaskNotFound
	}
	span.SetAttributes(attribute.Bool("task.found", true))
	return nil
}

// Remove hard-deletes a task.
func (r *PostgresRepository) Remove(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "PostgresRepository.Remove",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id::text = $1`, id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetAttributes(attribute.Bool("task.found", false))
		return model.ErrTaskNotFound
	}
	span.SetAttributes(attribute.Bool("task.found", true))
	return nil
}

// buildUpdate renders the partial UPDATE for a patch; empty when the patch
// sets nothing.
func buildUpdate(id string, p model.TaskPatch) (string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if p.Title != nil {
		add("title", *p.Title)
	}
	if p.Description != nil {
		add("description", nullString(*p.Description))
	}
	if p.IssueDate.IsSet() {
		add("issue_date", model.MillisPtr(p.IssueDate.Value()))
	}
	if p.DueDate.IsSet() {
		add("due_date", model.MillisPtr(p.DueDate.Value()))
	}
	if p.Completed != nil {
		add("completed", *p.Completed)
	}
	if p.Important != nil {
		add("important", *p.Important)
	}
	if p.Subject != nil {
		add("subject", nullString(*p.Subject))
	}
	if p.Tags != nil {
		add("tags", *p.Tags)
	}

	if len(sets) == 0 {
		return "", nil
	}
	args = append(args, id)
	return fmt.Sprintf("UPDATE tasks SET %s WHERE id::text = $%d", strings.Join(sets, ", "), len(args)), args
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// IsNoRows reports whether err means a single-row query found nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
