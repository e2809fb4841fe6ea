package model

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// TaskError represents a domain error.
type TaskError struct {
	Message string
	parent  error
}

func (e TaskError) Error() string {
	return e.Message
}

// Unwrap exposes the broader error kind, if any.
func (e TaskError) Unwrap() error {
	return e.parent
}

var (
	ErrNotAuthenticated  = TaskError{Message: "user not authenticated"}
	ErrNoUser            = TaskError{Message: "no user logged in", parent: ErrNotAuthenticated}
	ErrTaskNotFound      = TaskError{Message: "task not found"}
	ErrValidation        = TaskError{Message: "validation failed"}
	ErrTitleRequired     = TaskError{Message: "title is required", parent: ErrValidation}
	ErrQuotaExceeded     = TaskError{Message: "daily AI limit reached"}
	ErrRemoteUnavailable = TaskError{Message: "remote service unavailable"}
	ErrServerRejected    = TaskError{Message: "request rejected by server"}

	ErrUnauthenticated    = TaskError{Message: "server rejected credentials", parent: ErrServerRejected}
	ErrInvalidPrompt      = TaskError{Message: "prompt is empty or invalid", parent: ErrServerRejected}
	ErrUnparseablePrompt  = TaskError{Message: "prompt could not be turned into tasks", parent: ErrServerRejected}
	ErrServiceUnavailable = TaskError{Message: "AI service unavailable", parent: ErrServerRejected}
)

// FieldError is a single failed input check.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects every failed check of a form.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is makes every ValidationErrors match ErrValidation.
func (v ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// ServerError is a structured non-2xx answer from the backend.
type ServerError struct {
	Status     int
	Code       string
	Message    string
	Suggestion string
	Kind       error
}

func (e *ServerError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d: %s", e.Status, http.StatusText(e.Status))
	}
	if e.Suggestion != "" {
		return msg + " (suggestion: " + e.Suggestion + ")"
	}
	return msg
}

// Unwrap returns the classified kind, defaulting to ErrServerRejected.
func (e *ServerError) Unwrap() error {
	if e.Kind != nil {
		return e.Kind
	}
	return ErrServerRejected
}

// QuotaError reports a refused AI request together with the refreshed usage.
type QuotaError struct {
	Usage Usage
	Cause error
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s (%d of %d attempts used)", ErrQuotaExceeded.Message, e.Usage.Attempts, DailyQuota)
}

// Unwrap keeps both the quota kind and the server detail reachable.
func (e *QuotaError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrQuotaExceeded, e.Cause}
	}
	return []error{ErrQuotaExceeded}
}

// IsKind is a helper over errors.Is for several kinds at once.
func IsKind(err error, kinds ...error) bool {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}
