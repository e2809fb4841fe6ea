package model

import "time"

// Assignment is a task record as the backend API stores it.
type Assignment struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Subject     string     `json:"subject,omitempty"`
	IssueDate   *time.Time `json:"issueDate,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Completed   bool       `json:"completed"`
	Important   bool       `json:"important,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
}

// AssignmentUpdate is the body of PUT /assignments/:id.
type AssignmentUpdate struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Subject     *string    `json:"subject,omitempty"`
	IssueDate   *time.Time `json:"issueDate,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Completed   *bool      `json:"completed,omitempty"`
	Important   *bool      `json:"important,omitempty"`
}

// AssignmentStats is the summary returned by GET /assignments/stats.
type AssignmentStats struct {
	Total     int            `json:"total"`
	Completed int            `json:"completed"`
	Pending   int            `json:"pending"`
	Overdue   int            `json:"overdue"`
	BySubject map[string]int `json:"bySubject,omitempty"`
}

// AIResult is the backend's answer to an AI task-creation prompt, with the
// refreshed remaining attempts attached by the client.
type AIResult struct {
	Success           bool         `json:"success"`
	Message           string       `json:"message"`
	Tasks             []Assignment `json:"tasks,omitempty"`
	RemainingAttempts int          `json:"remainingAttempts"`
}

// Health is the backend liveness answer.
type Health struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}
