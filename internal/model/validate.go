package model

import (
	"errors"
	"strings"
	"time"
)

// ValidateTask runs the form checks on a task draft before anything is sent:
// a title is required, the issue date cannot lie in the future, and the due
// date must come after the issue date.
func ValidateTask(title string, issueDate, dueDate *time.Time, now time.Time) error {
	var errs ValidationErrors

	if strings.TrimSpace(title) == "" {
		errs = append(errs, FieldError{Field: "title", Message: "Title is required"})
	}
	if issueDate != nil && issueDate.After(now) {
		errs = append(errs, FieldError{Field: "issueDate", Message: "Issue date cannot be in the future"})
	}
	if issueDate != nil && dueDate != nil && !dueDate.After(*issueDate) {
		errs = append(errs, FieldError{Field: "dueDate", Message: "Due date must be after issue date"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Validate checks a create request.
func (n NewTask) Validate(now time.Time) error {
	return ValidateTask(n.Title, n.IssueDate, n.DueDate, now)
}

// ValidatePatch runs the form checks on t with p applied. Only failures
// involving a field the patch sets are reported: the title, the issue date,
// and the date order when either date changes.
func ValidatePatch(t Task, p TaskPatch, now time.Time) error {
	merged := t.Clone()
	p.Apply(&merged)

	var all ValidationErrors
	if err := ValidateTask(merged.Title, merged.IssueDate, merged.DueDate, now); !errors.As(err, &all) {
		return err
	}

	touched := map[string]bool{
		"title":     p.Title != nil,
		"issueDate": p.IssueDate.IsSet(),
		"dueDate":   p.IssueDate.IsSet() || p.DueDate.IsSet(),
	}
	var out ValidationErrors
	for _, fe := range all {
		if touched[fe.Field] {
			out = append(out, fe)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
