package model

import (
	"errors"
	"testing"
	"time"
)

func at(t time.Time) *time.Time { return &t }

func TestFilterUpcomingBoundary(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000).UTC()

	tests := []struct {
		name string
		task Task
		want bool
	}{
		{"due exactly in seven days", Task{DueDate: at(now.Add(7 * 24 * time.Hour))}, true},
		{"due in eight days", Task{DueDate: at(now.Add(8 * 24 * time.Hour))}, false},
		{"due one millisecond past the window", Task{DueDate: at(now.Add(7*24*time.Hour + time.Millisecond))}, false},
		{"due now", Task{DueDate: at(now)}, false},
		{"overdue", Task{DueDate: at(now.Add(-time.Hour))}, false},
		{"due tomorrow", Task{DueDate: at(now.Add(24 * time.Hour))}, true},
		{"due tomorrow but completed", Task{DueDate: at(now.Add(24 * time.Hour)), Completed: true}, false},
		{"no due date", Task{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FilterUpcoming.Matches(tt.task, now); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterImportantAndCompleted(t *testing.T) {
	now := time.Now()
	tasks := []Task{
		{ID: "a", Important: true},
		{ID: "b", Important: true, Completed: true},
		{ID: "c", Completed: true},
		{ID: "d"},
	}

	important := FilterImportant.Apply(tasks, now)
	if len(important) != 1 || important[0].ID != "a" {
		t.Errorf("important = %v, want [a]", ids(important))
	}
	for _, task := range important {
		if !task.Important || task.Completed {
			t.Errorf("important view holds %+v", task)
		}
	}

	completed := FilterCompleted.Apply(tasks, now)
	if len(completed) != 2 || completed[0].ID != "b" || completed[1].ID != "c" {
		t.Errorf("completed = %v, want [b c]", ids(completed))
	}

	if all := FilterAll.Apply(tasks, now); len(all) != 4 {
		t.Errorf("all = %d tasks, want 4", len(all))
	}
}

func TestParseFilter(t *testing.T) {
	for _, s := range []string{"", "all", "upcoming", "important", "completed"} {
		if _, err := ParseFilter(s); err != nil {
			t.Errorf("ParseFilter(%q) error = %v", s, err)
		}
	}
	if _, err := ParseFilter("overdue"); !errors.Is(err, ErrValidation) {
		t.Errorf("ParseFilter(overdue) error = %v, want ErrValidation", err)
	}
}

func TestSortTasks(t *testing.T) {
	tasks := []Task{
		{ID: "B", Important: false, CreatedAt: time.UnixMilli(200)},
		{ID: "C", Important: true, CreatedAt: time.UnixMilli(50)},
		{ID: "A", Important: true, CreatedAt: time.UnixMilli(100)},
	}
	SortTasks(tasks)

	got := ids(tasks)
	want := []string{"A", "C", "B"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestSortTasksImportanceOutranksCompletion(t *testing.T) {
	tasks := []Task{
		{ID: "open", CreatedAt: time.UnixMilli(300)},
		{ID: "done-important", Important: true, Completed: true, CreatedAt: time.UnixMilli(100)},
	}
	SortTasks(tasks)
	if tasks[0].ID != "done-important" {
		t.Errorf("first = %s, want done-important", tasks[0].ID)
	}
}

func TestParseSort(t *testing.T) {
	tests := []struct {
		in   string
		want SortBy
	}{
		{"", SortCreated},
		{"createdAt", SortCreated},
		{"dueDate", SortDueDate},
		{"issueDate", SortIssueDate},
	}
	for _, tt := range tests {
		got, err := ParseSort(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseSort(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseSort("title"); !errors.Is(err, ErrValidation) {
		t.Errorf("ParseSort(title) error = %v, want ErrValidation", err)
	}
}

func TestSortTasksBy(t *testing.T) {
	at := func(ms int64) *time.Time { v := time.UnixMilli(ms); return &v }

	tests := []struct {
		name  string
		by    SortBy
		tasks []Task
		want  []string
	}{
		{
			name: "due date earliest first",
			by:   SortDueDate,
			tasks: []Task{
				{ID: "late", DueDate: at(300), CreatedAt: time.UnixMilli(1)},
				{ID: "soon", DueDate: at(100), CreatedAt: time.UnixMilli(2)},
			},
			want: []string{"soon", "late"},
		},
		{
			name: "missing due date goes last",
			by:   SortDueDate,
			tasks: []Task{
				{ID: "undated", CreatedAt: time.UnixMilli(900)},
				{ID: "dated", DueDate: at(500), CreatedAt: time.UnixMilli(1)},
			},
			want: []string{"dated", "undated"},
		},
		{
			name: "no due dates falls back to newest",
			by:   SortDueDate,
			tasks: []Task{
				{ID: "old", CreatedAt: time.UnixMilli(100)},
				{ID: "new", CreatedAt: time.UnixMilli(200)},
			},
			want: []string{"new", "old"},
		},
		{
			name: "important outranks an earlier due date",
			by:   SortDueDate,
			tasks: []Task{
				{ID: "soon", DueDate: at(100)},
				{ID: "important-undated", Important: true},
			},
			want: []string{"important-undated", "soon"},
		},
		{
			name: "issue date earliest first, missing last",
			by:   SortIssueDate,
			tasks: []Task{
				{ID: "undated", CreatedAt: time.UnixMilli(900)},
				{ID: "recent", IssueDate: at(400), DueDate: at(10)},
				{ID: "early", IssueDate: at(100)},
			},
			want: []string{"early", "recent", "undated"},
		},
		{
			name: "same issue date falls back to newest",
			by:   SortIssueDate,
			tasks: []Task{
				{ID: "old", IssueDate: at(100), CreatedAt: time.UnixMilli(1)},
				{ID: "new", IssueDate: at(100), CreatedAt: time.UnixMilli(2)},
			},
			want: []string{"new", "old"},
		},
		{
			name: "created ignores dates",
			by:   SortCreated,
			tasks: []Task{
				{ID: "old", DueDate: at(1), CreatedAt: time.UnixMilli(1)},
				{ID: "new", CreatedAt: time.UnixMilli(2)},
			},
			want: []string{"new", "old"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SortTasksBy(tt.tasks, tt.by)
			got := ids(tt.tasks)
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("order = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func ids(tasks []Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}
