package repository

import (
	"context"

	"github.com/hiroki-koketsu/upahead/internal/model"
)

// DefaultPageSize is used when a caller asks for a non-positive page size.
const DefaultPageSize = 10

// Cursor is an opaque reference to the last document of a fetched page.
// The zero value starts from the beginning of the collection.
type Cursor string

// Page is one window of a user's tasks.
type Page struct {
	Tasks   []model.Task
	Cursor  Cursor
	HasMore bool
	// Restarted is set when the cursor no longer names a document and the
	// page was cut from the beginning instead.
	Restarted bool
}

// TaskRepository is a remote task collection keyed by generated ids and
// partitioned by owning user.
type TaskRepository interface {
	// FetchPage returns up to pageSize tasks owned by userID, resuming after
	// cursor. Tasks are ordered with model.SortTasks.
	FetchPage(ctx context.Context, userID string, pageSize int, cursor Cursor) (Page, error)
	// Insert stores a new task and returns its generated id.
	Insert(ctx context.Context, task model.NewTask) (string, error)
	// Update writes only the fields the patch sets.
	Update(ctx context.Context, id string, patch model.TaskPatch) error
	// Remove hard-deletes the task.
	Remove(ctx context.Context, id string) error
}

// Paginate cuts one page out of docs, which must hold a single user's tasks
// in the collection's natural order. A cursor that is not found restarts
// from the first document and marks the page Restarted.
func Paginate(docs []model.Task, pageSize int, cursor Cursor) Page {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	start := 0
	restarted := false
	if cursor != "" {
		restarted = true
		for i, d := range docs {
			if d.ID == string(cursor) {
				start = i + 1
				restarted = false
				break
			}
		}
	}

	// One extra document tells whether another page exists.
	end := start + pageSize + 1
	if end > len(docs) {
		end = len(docs)
	}
	window := docs[start:end]

	page := Page{HasMore: len(window) > pageSize, Restarted: restarted}
	if page.HasMore {
		window = window[:pageSize]
	}

	page.Tasks = make([]model.Task, 0, len(window))
	for _, d := range window {
		page.Tasks = append(page.Tasks, d.Clone())
	}
	if len(window) > 0 {
		page.Cursor = Cursor(window[len(window)-1].ID)
	}

	model.SortTasks(page.Tasks)
	return page
}
