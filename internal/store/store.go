// Package store holds the task state container: the current user's loaded
// task pages, loading and pagination state, and the mutation operations that
// keep it in step with the repository.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hiroki-koketsu/upahead/internal/model"
	"github.com/hiroki-koketsu/upahead/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/hiroki-koketsu/upahead/internal/store")

// Snapshot is a copy of the store state at one instant.
type Snapshot struct {
	UserID   string       `json:"userId,omitempty"`
	Tasks    []model.Task `json:"tasks"`
	Loading  bool         `json:"loading"`
	HasMore  bool         `json:"hasMore"`
	PageSize int          `json:"pageSize"`
}

// Option configures a Store.
type Option func(*Store)

// WithPageSize sets the page size used for every fetch.
func WithPageSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithClock replaces the clock used by the upcoming filter.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store caches the active user's tasks. Every mutation is followed by a
// refetch of the first page instead of an optimistic local edit, and every
// fetch is tagged with the user generation and page epoch it was issued for
// so that late results from a previous context are dropped.
type Store struct {
	repo     repository.TaskRepository
	logger   *slog.Logger
	pageSize int
	now      func() time.Time

	mu          sync.Mutex
	userID      string
	tasks       []model.Task
	cursor      repository.Cursor
	hasMore     bool
	inflight    int
	loadingMore bool
	generation  uint64 // bumped on user switch
	epoch       uint64 // bumped whenever page one replaces the list
	issued      uint64 // sequence of first-page fetches
	committed   uint64 // last first-page fetch that was applied

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

// New creates an empty Store with no active user.
func New(repo repository.TaskRepository, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		repo:     repo,
		logger:   logger,
		pageSize: repository.DefaultPageSize,
		now:      time.Now,
		subs:     make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetCurrentUser switches the store to userID. A change clears the cached
// tasks and pagination state and, for a non-empty id, loads the first page.
// An empty id always clears.
func (s *Store) SetCurrentUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	if userID == s.userID && userID != "" {
		s.mu.Unlock()
		return nil
	}
	s.logger.InfoContext(ctx, "switching task store user",
		slog.String("from", s.userID),
		slog.String("to", userID),
	)
	s.userID = userID
	s.generation++
	s.epoch++
	s.tasks = nil
	s.cursor = ""
	s.hasMore = false
	s.loadingMore = false
	s.mu.Unlock()
	s.notify()

	if userID == "" {
		return nil
	}
	return s.fetchFirstPage(ctx)
}

// CurrentUser returns the active user id, empty when none.
func (s *Store) CurrentUser() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// AddTask inserts a task for the active user, then reloads page one.
func (s *Store) AddTask(ctx context.Context, in model.NewTask) error {
	ctx, span := tracer.Start(ctx, "Store.AddTask")
	defer span.End()

	userID := s.CurrentUser()
	if userID == "" {
		return model.ErrNoUser
	}
	if strings.TrimSpace(in.Title) == "" {
		return model.ErrTitleRequired
	}
	in.UserID = userID

	id, err := s.repo.Insert(ctx, in)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.logger.ErrorContext(ctx, "failed to add task", slog.Any("error", err))
		return fmt.Errorf("add task: %w", err)
	}
	span.SetAttributes(attribute.String("task.id", id))
	s.logger.InfoContext(ctx, "task added", slog.String("id", id))

	return s.refreshAfter(ctx, "add")
}

// UpdateTask checks the patch against the cached task, applies it, then
// reloads page one.
func (s *Store) UpdateTask(ctx context.Context, id string, patch model.TaskPatch) error {
	ctx, span := tracer.Start(ctx, "Store.UpdateTask",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	current, _ := s.lookup(id)
	if err := model.ValidatePatch(current, patch, s.now()); err != nil {
		return err
	}

	if err := s.repo.Update(ctx, id, patch); err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.logger.ErrorContext(ctx, "failed to update task", slog.String("id", id), slog.Any("error", err))
		return fmt.Errorf("update task: %w", err)
	}
	s.logger.InfoContext(ctx, "task updated", slog.String("id", id))

	return s.refreshAfter(ctx, "update")
}

// DeleteTask removes a task, then reloads page one.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Store.DeleteTask",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	if err := s.repo.Remove(ctx, id); err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.logger.ErrorContext(ctx, "failed to delete task", slog.String("id", id), slog.Any("error", err))
		return fmt.Errorf("delete task: %w", err)
	}
	s.logger.InfoContext(ctx, "task deleted", slog.String("id", id))

	return s.refreshAfter(ctx, "delete")
}

// ToggleTask flips the completion flag of a cached task.
func (s *Store) ToggleTask(ctx context.Context, id string) error {
	task, ok := s.lookup(id)
	if !ok {
		return model.ErrTaskNotFound
	}
	return s.UpdateTask(ctx, id, model.TaskPatch{Completed: model.Ptr(!task.Completed)})
}

// RefreshTasks replaces the cached tasks with page one. It does nothing
// without an active user.
func (s *Store) RefreshTasks(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Store.RefreshTasks")
	defer span.End()

	if err := s.fetchFirstPage(ctx); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// LoadMoreTasks appends the next page. When the repository no longer knows
// the cursor the list is replaced by page one. It does nothing without an active
// user, without a cursor, when no more pages exist, or while another load
// is already running.
func (s *Store) LoadMoreTasks(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Store.LoadMoreTasks")
	defer span.End()

	s.mu.Lock()
	if s.userID == "" || s.cursor == "" || !s.hasMore || s.loadingMore {
		s.mu.Unlock()
		return nil
	}
	userID, cursor := s.userID, s.cursor
	gen, epoch := s.generation, s.epoch
	s.loadingMore = true
	s.inflight++
	s.mu.Unlock()
	s.notify()

	page, err := s.repo.FetchPage(ctx, userID, s.pageSize, cursor)

	s.mu.Lock()
	s.inflight--
	if gen == s.generation {
		s.loadingMore = false
	}
	if err != nil {
		s.mu.Unlock()
		s.notify()
		span.SetStatus(codes.Error, err.Error())
		s.logger.ErrorContext(ctx, "failed to load more tasks", slog.String("user", userID), slog.Any("error", err))
		return fmt.Errorf("load more tasks: %w", err)
	}
	if gen != s.generation || epoch != s.epoch {
		s.mu.Unlock()
		s.notify()
		s.logger.DebugContext(ctx, "dropping stale page", slog.String("user", userID))
		return nil
	}
	if page.Restarted {
		// The cursor row is gone; the page is page one again.
		s.epoch++
		s.tasks = page.Tasks
	} else {
		s.tasks = append(s.tasks, page.Tasks...)
	}
	s.cursor = page.Cursor
	s.hasMore = page.HasMore
	s.mu.Unlock()
	s.notify()

	if page.Restarted {
		span.SetAttributes(attribute.Bool("page.restarted", true))
		s.logger.InfoContext(ctx, "cursor vanished, reloaded from page one", slog.String("user", userID))
	}

	span.SetAttributes(attribute.Int("task.count", len(page.Tasks)))
	s.logger.DebugContext(ctx, "loaded more tasks", slog.Int("count", len(page.Tasks)), slog.Bool("has_more", page.HasMore))
	return nil
}

// Tasks returns a copy of the cached tasks in display order.
func (s *Store) Tasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTasks(s.tasks)
}

// TasksByUser returns the cached tasks owned by userID.
func (s *Store) TasksByUser(userID string) []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if t.UserID == userID {
			out = append(out, t.Clone())
		}
	}
	return out
}

// TasksByFilter returns the active user's cached tasks matching f.
func (s *Store) TasksByFilter(f model.Filter) []model.Task {
	s.mu.Lock()
	userID := s.userID
	s.mu.Unlock()

	return f.Apply(s.TasksByUser(userID), s.now())
}

// Loading reports whether a fetch is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

// HasMore reports whether another page can be loaded.
func (s *Store) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// Len returns the number of cached tasks.
func (s *Store) Len() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.tasks))
}

// Snapshot returns a copy of the whole state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every state change.
// fn runs on the goroutine that changed the state and must not block.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) refreshAfter(ctx context.Context, op string) error {
	if err := s.fetchFirstPage(ctx); err != nil {
		return fmt.Errorf("refresh after %s: %w", op, err)
	}
	return nil
}

// fetchFirstPage loads page one for the active user and replaces the list.
// A result is applied only if the user has not changed and no newer
// first-page fetch has been applied meanwhile.
func (s *Store) fetchFirstPage(ctx context.Context) error {
	s.mu.Lock()
	userID := s.userID
	if userID == "" {
		s.mu.Unlock()
		return nil
	}
	gen := s.generation
	s.issued++
	seq := s.issued
	s.inflight++
	s.mu.Unlock()
	s.notify()

	page, err := s.repo.FetchPage(ctx, userID, s.pageSize, "")

	s.mu.Lock()
	s.inflight--
	if err != nil {
		s.mu.Unlock()
		s.notify()
		s.logger.ErrorContext(ctx, "failed to fetch tasks", slog.String("user", userID), slog.Any("error", err))
		return fmt.Errorf("fetch tasks: %w", err)
	}
	if gen != s.generation || seq < s.committed {
		s.mu.Unlock()
		s.notify()
		s.logger.DebugContext(ctx, "dropping stale page", slog.String("user", userID))
		return nil
	}
	s.committed = seq
	s.epoch++
	s.tasks = page.Tasks
	s.cursor = page.Cursor
	s.hasMore = page.HasMore
	s.mu.Unlock()
	s.notify()

	s.logger.DebugContext(ctx, "fetched tasks",
		slog.String("user", userID),
		slog.Int("count", len(page.Tasks)),
		slog.Bool("has_more", page.HasMore),
	)
	return nil
}

func (s *Store) lookup(id string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t.Clone(), true
		}
	}
	return model.Task{}, false
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		UserID:   s.userID,
		Tasks:    cloneTasks(s.tasks),
		Loading:  s.inflight > 0,
		HasMore:  s.hasMore,
		PageSize: s.pageSize,
	}
}

func (s *Store) notify() {
	s.subMu.Lock()
	if len(s.subs) == 0 {
		s.subMu.Unlock()
		return
	}
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	snap := s.Snapshot()
	for _, fn := range fns {
		fn(snap)
	}
}

func cloneTasks(tasks []model.Task) []model.Task {
	out := make([]model.Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}
