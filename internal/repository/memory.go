package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hiroki-koketsu/upahead/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/hiroki-koketsu/upahead/internal/repository")

// MemoryRepository provides an in-memory task collection. Documents keep
// their insertion order, which is the order pages are cut in.
type MemoryRepository struct {
	mu    sync.RWMutex
	order []string
	tasks map[string]*model.Task
	now   func() time.Time
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		tasks: make(map[string]*model.Task),
		now:   time.Now,
	}
}

// SetClock replaces the source of creation timestamps.
func (r *MemoryRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// FetchPage returns one page of the user's tasks.
func (r *MemoryRepository) FetchPage(ctx context.Context, userID string, pageSize int, cursor Cursor) (Page, error) {
	_, span := tracer.Start(ctx, "MemoryRepository.FetchPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page.size", pageSize),
			attribute.Bool("page.resumed", cursor != ""),
		),
	)
	defer span.End()

	r.mu.RLock()
	docs := make([]model.Task, 0, len(r.order))
	for _, id := range r.order {
		if t := r.tasks[id]; t.UserID == userID {
			docs = append(docs, *t)
		}
	}
	r.mu.RUnlock()

	page := Paginate(docs, pageSize, cursor)
	span.SetAttributes(
		attribute.Int("task.count", len(page.Tasks)),
		attribute.Bool("page.has_more", page.HasMore),
	)
	return page, nil
}

// Insert adds a new task to the collection.
func (r *MemoryRepository) Insert(ctx context.Context, in model.NewTask) (string, error) {
	_, span := tracer.Start(ctx, "MemoryRepository.Insert",
		trace.WithAttributes(attribute.String("task.title", in.Title)),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	task := &model.Task{
		ID:          uuid.New().String(),
		UserID:      in.UserID,
		Title:       in.Title,
		Description: in.Description,
		CreatedAt:   model.Millis(r.now()),
		IssueDate:   model.MillisPtr(in.IssueDate),
		DueDate:     model.MillisPtr(in.DueDate),
		Completed:   in.Completed,
		Important:   in.Important,
		Subject:     in.Subject,
		Tags:        append([]string{}, in.Tags...),
	}

	r.tasks[task.ID] = task
	r.order = append(r.order, task.ID)

	span.SetAttributes(attribute.String("task.id", task.ID))
	return task.ID, nil
}

// Update modifies an existing task.
func (r *MemoryRepository) Update(ctx context.Context, id string, patch model.TaskPatch) error {
	_, span := tracer.Start(ctx, "MemoryRepository.Update",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		span.SetAttributes(attribute.Bool("task.found", false))
		return model.ErrTaskNotFound
	}

	patch.Apply(task)
	span.SetAttributes(attribute.Bool("task.found", true))
	return nil
}

// Remove deletes a task from the collection.
func (r *MemoryRepository) Remove(ctx context.Context, id string) error {
	_, span := tracer.Start(ctx, "MemoryRepository.Remove",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		span.SetAttributes(attribute.Bool("task.found", false))
		return model.ErrTaskNotFound
	}

	delete(r.tasks, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	span.SetAttributes(attribute.Bool("task.found", true))
	return nil
}

// Count returns the current number of stored tasks.
func (r *MemoryRepository) Count() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.tasks))
}
