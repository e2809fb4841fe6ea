package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hiroki-koketsu/upahead/internal/model"
)

// steppingClock returns a clock that advances one second per call.
func steppingClock() func() time.Time {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func seed(t *testing.T, r *MemoryRepository, userID string, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id, err := r.Insert(context.Background(), model.NewTask{UserID: userID, Title: fmt.Sprintf("task %d", i)})
		if err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestMemoryRepositoryPagination(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	r.SetClock(steppingClock())
	seed(t, r, "u1", 25)
	seed(t, r, "u2", 3)

	seen := map[string]bool{}
	var cursor Cursor
	pages := 0
	for {
		page, err := r.FetchPage(ctx, "u1", 10, cursor)
		if err != nil {
			t.Fatalf("FetchPage() error = %v", err)
		}
		pages++
		for _, task := range page.Tasks {
			if task.UserID != "u1" {
				t.Fatalf("page leaked task of user %s", task.UserID)
			}
			if seen[task.ID] {
				t.Fatalf("task %s returned twice", task.ID)
			}
			seen[task.ID] = true
		}
		if !page.HasMore {
			break
		}
		cursor = page.Cursor
	}

	if pages != 3 {
		t.Errorf("pages = %d, want 3", pages)
	}
	if len(seen) != 25 {
		t.Errorf("saw %d tasks, want 25", len(seen))
	}
}

func TestMemoryRepositoryExactPageHasNoMore(t *testing.T) {
	r := NewMemoryRepository()
	seed(t, r, "u1", 10)

	page, err := r.FetchPage(context.Background(), "u1", 10, "")
	if err != nil {
		t.Fatal(err)
	}
	if page.HasMore {
		t.Error("HasMore = true for exactly one page of tasks")
	}
	if len(page.Tasks) != 10 {
		t.Errorf("len = %d, want 10", len(page.Tasks))
	}
}

func TestMemoryRepositorySortsPage(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	r.SetClock(steppingClock())

	plain, _ := r.Insert(ctx, model.NewTask{UserID: "u1", Title: "plain"})
	imp, _ := r.Insert(ctx, model.NewTask{UserID: "u1", Title: "important", Important: true})
	newest, _ := r.Insert(ctx, model.NewTask{UserID: "u1", Title: "newest"})

	page, err := r.FetchPage(ctx, "u1", 10, "")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{imp, newest, plain}
	for i, id := range want {
		if page.Tasks[i].ID != id {
			t.Fatalf("position %d = %s, want %s", i, page.Tasks[i].Title, id)
		}
	}
}

func TestMemoryRepositoryDateRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	t1 := time.UnixMilli(1_704_067_200_001).UTC()
	t2 := time.UnixMilli(1_704_672_000_999).UTC()
	id, err := r.Insert(ctx, model.NewTask{UserID: "u1", Title: "dated", IssueDate: &t1, DueDate: &t2})
	if err != nil {
		t.Fatal(err)
	}

	page, _ := r.FetchPage(ctx, "u1", 10, "")
	got := page.Tasks[0]
	if got.ID != id || !got.IssueDate.Equal(t1) || !got.DueDate.Equal(t2) {
		t.Errorf("round trip = %v %v, want %v %v", got.IssueDate, got.DueDate, t1, t2)
	}
}

func TestMemoryRepositoryUpdateAndRemove(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	due := time.Now()
	id, _ := r.Insert(ctx, model.NewTask{UserID: "u1", Title: "old", DueDate: &due})

	if err := r.Update(ctx, id, model.TaskPatch{Title: model.Ptr("new"), DueDate: model.ClearDate()}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	page, _ := r.FetchPage(ctx, "u1", 10, "")
	if page.Tasks[0].Title != "new" || page.Tasks[0].DueDate != nil {
		t.Errorf("after update = %+v", page.Tasks[0])
	}

	if err := r.Remove(ctx, id); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if r.Count() != 0 {
		t.Errorf("Count() = %d, want 0", r.Count())
	}

	if err := r.Remove(ctx, id); !errors.Is(err, model.ErrTaskNotFound) {
		t.Errorf("second Remove() error = %v, want ErrTaskNotFound", err)
	}
	if err := r.Update(ctx, id, model.TaskPatch{}); !errors.Is(err, model.ErrTaskNotFound) {
		t.Errorf("Update() on missing error = %v, want ErrTaskNotFound", err)
	}
}

func TestPaginateUnknownCursorRestarts(t *testing.T) {
	docs := []model.Task{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	page := Paginate(docs, 2, "gone")
	if len(page.Tasks) != 2 || !page.HasMore || page.Cursor != "b" || !page.Restarted {
		t.Errorf("page = %+v", page)
	}

	next := Paginate(docs, 2, page.Cursor)
	if len(next.Tasks) != 1 || next.HasMore || next.Cursor != "c" || next.Restarted {
		t.Errorf("next = %+v", next)
	}

	if first := Paginate(docs, 2, ""); first.Restarted {
		t.Errorf("first page marked restarted: %+v", first)
	}

	empty := Paginate(nil, 2, "")
	if len(empty.Tasks) != 0 || empty.HasMore || empty.Cursor != "" {
		t.Errorf("empty = %+v", empty)
	}
}
