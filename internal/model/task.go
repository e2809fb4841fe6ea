package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Task represents a todo item owned by a single user.
type Task struct {
	ID          string
	UserID      string
	Title       string
	Description string
	CreatedAt   time.Time
	IssueDate   *time.Time
	DueDate     *time.Time
	Completed   bool
	Important   bool
	Subject     string
	Tags        []string
}

// NewTask holds the fields a caller supplies when creating a task.
// ID and CreatedAt are assigned by the repository.
type NewTask struct {
	UserID      string
	Title       string
	Description string
	IssueDate   *time.Time
	DueDate     *time.Time
	Completed   bool
	Important   bool
	Subject     string
	Tags        []string
}

// Millis truncates t to millisecond precision, the granularity every
// repository stores timestamps at.
func Millis(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli()).UTC()
}

// MillisPtr is Millis for optional timestamps.
func MillisPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := Millis(*t)
	return &v
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	c := t
	c.IssueDate = MillisPtr(t.IssueDate)
	c.DueDate = MillisPtr(t.DueDate)
	if t.Tags != nil {
		c.Tags = append([]string(nil), t.Tags...)
	}
	return c
}

// taskJSON is the wire shape of a task: timestamps are epoch milliseconds.
type taskJSON struct {
	ID          string   `json:"id"`
	UserID      string   `json:"userId"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	CreatedAt   int64    `json:"createdAt"`
	IssueDate   *int64   `json:"issueDate,omitempty"`
	DueDate     *int64   `json:"dueDate,omitempty"`
	Completed   bool     `json:"completed"`
	Important   bool     `json:"important"`
	Subject     string   `json:"subject,omitempty"`
	Tags        []string `json:"tags"`
}

func toMillis(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func fromMillis(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms).UTC()
	return &t
}

// MarshalJSON encodes the task with epoch-millisecond timestamps.
func (t Task) MarshalJSON() ([]byte, error) {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	return json.Marshal(taskJSON{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		CreatedAt:   t.CreatedAt.UnixMilli(),
		IssueDate:   toMillis(t.IssueDate),
		DueDate:     toMillis(t.DueDate),
		Completed:   t.Completed,
		Important:   t.Important,
		Subject:     t.Subject,
		Tags:        tags,
	})
}

// UnmarshalJSON decodes the epoch-millisecond wire shape.
func (t *Task) UnmarshalJSON(data []byte) error {
	var raw taskJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Task{
		ID:          raw.ID,
		UserID:      raw.UserID,
		Title:       raw.Title,
		Description: raw.Description,
		CreatedAt:   time.UnixMilli(raw.CreatedAt).UTC(),
		IssueDate:   fromMillis(raw.IssueDate),
		DueDate:     fromMillis(raw.DueDate),
		Completed:   raw.Completed,
		Important:   raw.Important,
		Subject:     raw.Subject,
		Tags:        raw.Tags,
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	return nil
}

// UnmarshalJSON decodes a create request. Any id, userId or createdAt in the
// payload is ignored.
func (n *NewTask) UnmarshalJSON(data []byte) error {
	var raw struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		IssueDate   *int64   `json:"issueDate"`
		DueDate     *int64   `json:"dueDate"`
		Completed   bool     `json:"completed"`
		Important   bool     `json:"important"`
		Subject     string   `json:"subject"`
		Tags        []string `json:"tags"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = NewTask{
		Title:       raw.Title,
		Description: raw.Description,
		IssueDate:   fromMillis(raw.IssueDate),
		DueDate:     fromMillis(raw.DueDate),
		Completed:   raw.Completed,
		Important:   raw.Important,
		Subject:     raw.Subject,
		Tags:        raw.Tags,
	}
	return nil
}

// DatePatch is a tri-state optional timestamp: untouched, set, or cleared.
type DatePatch struct {
	set   bool
	value *time.Time
}

// SetDate returns a patch that assigns t.
func SetDate(t time.Time) DatePatch {
	v := Millis(t)
	return DatePatch{set: true, value: &v}
}

// ClearDate returns a patch that removes the stored value.
func ClearDate() DatePatch {
	return DatePatch{set: true}
}

// IsSet reports whether the patch touches the field.
func (p DatePatch) IsSet() bool { return p.set }

// Value is the new value; nil for a clear or an untouched field.
func (p DatePatch) Value() *time.Time { return p.value }

// TaskPatch is a partial update. Nil fields are left untouched. The
// identifier, owner and creation time cannot be patched.
type TaskPatch struct {
	Title       *string
	Description *string
	IssueDate   DatePatch
	DueDate     DatePatch
	Completed   *bool
	Important   *bool
	Subject     *string
	Tags        *[]string
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && !p.IssueDate.IsSet() && !p.DueDate.IsSet() &&
		p.Completed == nil && p.Important == nil && p.Subject == nil && p.Tags == nil
}

// Apply writes the patch onto t.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.IssueDate.IsSet() {
		t.IssueDate = MillisPtr(p.IssueDate.Value())
	}
	if p.DueDate.IsSet() {
		t.DueDate = MillisPtr(p.DueDate.Value())
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.Important != nil {
		t.Important = *p.Important
	}
	if p.Subject != nil {
		t.Subject = *p.Subject
	}
	if p.Tags != nil {
		t.Tags = append([]string{}, (*p.Tags)...)
	}
}

// UnmarshalJSON decodes a partial update. A date key holding null clears the
// field; an absent key leaves it untouched. id, userId and createdAt are
// dropped.
func (p *TaskPatch) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*p = TaskPatch{}
	for key, raw := range fields {
		var err error
		switch key {
		case "title":
			err = json.Unmarshal(raw, &p.Title)
		case "description":
			err = json.Unmarshal(raw, &p.Description)
		case "completed":
			err = json.Unmarshal(raw, &p.Completed)
		case "important":
			err = json.Unmarshal(raw, &p.Important)
		case "subject":
			err = json.Unmarshal(raw, &p.Subject)
		case "tags":
			var tags []string
			if err = json.Unmarshal(raw, &tags); err == nil {
				if tags == nil {
					tags = []string{}
				}
				p.Tags = &tags
			}
		case "issueDate":
			p.IssueDate, err = decodeDatePatch(raw)
		case "dueDate":
			p.DueDate, err = decodeDatePatch(raw)
		}
		if err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
	}
	return nil
}

func decodeDatePatch(raw json.RawMessage) (DatePatch, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return ClearDate(), nil
	}
	var ms int64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return DatePatch{}, err
	}
	return SetDate(time.UnixMilli(ms)), nil
}
