package model

import (
	"fmt"
	"sort"
	"time"
)

// Filter selects a view over the cached tasks.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterUpcoming  Filter = "upcoming"
	FilterImportant Filter = "important"
	FilterCompleted Filter = "completed"
)

// UpcomingWindow is how far ahead the upcoming view looks.
const UpcomingWindow = 7 * 24 * time.Hour

// ParseFilter maps a query value to a Filter. Empty means all.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(s); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterUpcoming, FilterImportant, FilterCompleted:
		return f, nil
	default:
		return "", fmt.Errorf("unknown filter %q: %w", s, ErrValidation)
	}
}

// Matches reports whether t belongs to the view at instant now.
func (f Filter) Matches(t Task, now time.Time) bool {
	switch f {
	case FilterCompleted:
		return t.Completed
	case FilterImportant:
		return t.Important && !t.Completed
	case FilterUpcoming:
		if t.Completed || t.DueDate == nil {
			return false
		}
		due := t.DueDate.UnixMilli()
		n := now.UnixMilli()
		return due > n && due <= n+UpcomingWindow.Milliseconds()
	default:
		return true
	}
}

// Apply returns the tasks matching the view, order preserved.
func (f Filter) Apply(tasks []Task, now time.Time) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Matches(t, now) {
			out = append(out, t)
		}
	}
	return out
}

// SortBy is a display order for the task list.
type SortBy string

const (
	SortCreated   SortBy = "createdAt"
	SortDueDate   SortBy = "dueDate"
	SortIssueDate SortBy = "issueDate"
)

// ParseSort maps a query value to a SortBy. Empty means newest first.
func ParseSort(s string) (SortBy, error) {
	switch by := SortBy(s); by {
	case "":
		return SortCreated, nil
	case SortCreated, SortDueDate, SortIssueDate:
		return by, nil
	default:
		return "", fmt.Errorf("unknown sort %q: %w", s, ErrValidation)
	}
}

// SortTasks orders important tasks first, then newest first. Completion
// does not affect the order.
func SortTasks(tasks []Task) {
	SortTasksBy(tasks, SortCreated)
}

// SortTasksBy orders important tasks first, then by the chosen mode. The
// date modes put the earliest date first and tasks without the date last;
// ties and tasks with neither date fall back to newest first.
func SortTasksBy(tasks []Task, by SortBy) {
	date := func(t Task) *time.Time { return nil }
	switch by {
	case SortDueDate:
		date = func(t Task) *time.Time { return t.DueDate }
	case SortIssueDate:
		date = func(t Task) *time.Time { return t.IssueDate }
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.Important != b.Important {
			return a.Important
		}
		da, db := date(a), date(b)
		switch {
		case da != nil && db == nil:
			return true
		case da == nil && db != nil:
			return false
		case da != nil && !da.Equal(*db):
			return da.Before(*db)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}
