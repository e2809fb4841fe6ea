package localstate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hiroki-koketsu/upahead/internal/model"
	"github.com/hiroki-koketsu/upahead/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/hiroki-koketsu/upahead/internal/localstate")

// TaskRepository implements repository.TaskRepository over the serialized
// task list of every local user. New tasks are stored first.
type TaskRepository struct {
	kv  *Store
	now func() time.Time

	mu sync.Mutex
}

// NewTaskRepository stores tasks under TasksKey in kv.
func NewTaskRepository(kv *Store) *TaskRepository {
	return &TaskRepository{kv: kv, now: time.Now}
}

// SetClock replaces the clock used for creation timestamps.
func (r *TaskRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// FetchPage returns one page of the user's tasks.
func (r *TaskRepository) FetchPage(ctx context.Context, userID string, pageSize int, cursor repository.Cursor) (repository.Page, error) {
	ctx, span := tracer.Start(ctx, "TaskRepository.FetchPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page.size", pageSize),
			attribute.Bool("page.resumed", cursor != ""),
		),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.load(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return repository.Page{}, err
	}

	owned := make([]model.Task, 0, len(all))
	for _, t := range all {
		if t.UserID == userID {
			owned = append(owned, t)
		}
	}
	page := repository.Paginate(owned, pageSize, cursor)
	span.SetAttributes(
		attribute.Int("task.count", len(page.Tasks)),
		attribute.Bool("page.has_more", page.HasMore),
		attribute.Bool("page.restarted", page.Restarted),
	)
	return page, nil
}

// Insert stores a new task ahead of the existing ones.
func (r *TaskRepository) Insert(ctx context.Context, in model.NewTask) (string, error) {
	ctx, span := tracer.Start(ctx, "TaskRepository.Insert",
		trace.WithAttributes(attribute.String("user.id", in.UserID)),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.load(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	task := model.Task{
		ID:          "task_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:9],
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

	all = append([]model.Task{task}, all...)
	if err := r.save(ctx, all); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.String("task.id", task.ID))
	return task.ID, nil
}

func (r *TaskRepository) Update(ctx context.Context, id string, patch model.TaskPatch) error {
	ctx, span := tracer.Start(ctx, "TaskRepository.Update",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.rewrite(ctx, id, func(all []model.Task, i int) []model.Task {
		patch.Apply(&all[i])
		return all
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *TaskRepository) Remove(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "TaskRepository.Remove",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.rewrite(ctx, id, func(all []model.Task, i int) []model.Task {
		return append(all[:i], all[i+1:]...)
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// Clear removes every stored task of userID and reports how many went.
func (r *TaskRepository) Clear(ctx context.Context, userID string) (int, error) {
	ctx, span := tracer.Start(ctx, "TaskRepository.Clear",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.load(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	kept := all[:0]
	for _, t := range all {
		if t.UserID != userID {
			kept = append(kept, t)
		}
	}
	removed := len(all) - len(kept)
	if err := r.save(ctx, kept); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	span.SetAttributes(attribute.Int("task.count", removed))
	return removed, nil
}

// rewrite applies fn to the stored list at the index of id and saves the
// result. The caller holds r.mu.
func (r *TaskRepository) rewrite(ctx context.Context, id string, fn func(all []model.Task, i int) []model.Task) error {
	all, err := r.load(ctx)
	if err != nil {
		return err
	}
	for i := range all {
		if all[i].ID == id {
			return r.save(ctx, fn(all, i))
		}
	}
	return model.ErrTaskNotFound
}

func (r *TaskRepository) load(ctx context.Context) ([]model.Task, error) {
	raw, ok, err := r.kv.Get(ctx, TasksKey)
	if err != nil || !ok {
		return nil, err
	}
	var tasks []model.Task
	if err := json.Unmarshal([]byte(raw), &tasks); err != nil {
		return nil, fmt.Errorf("decode %s: %w", TasksKey, err)
	}
	return tasks, nil
}

func (r *TaskRepository) save(ctx context.Context, tasks []model.Task) error {
	if tasks == nil {
		tasks = []model.Task{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return err
	}
	return r.kv.Set(ctx, TasksKey, string(data))
}
