package ai

import (
	"net/http"

	"github.com/hiroki-koketsu/upahead/internal/model"
)

// Error codes the AI endpoint puts in error.code.
const (
	CodeEmptyPrompt        = "EMPTY_PROMPT"
	CodeInvalidPrompt      = "INVALID_PROMPT"
	CodeUnparseablePrompt  = "UNPARSEABLE_PROMPT"
	CodeQuotaExceeded      = "QUOTA_EXCEEDED"
	CodeAIUnavailable      = "AI_UNAVAILABLE"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// Classify maps a structured failure of the AI endpoint to an error kind.
func Classify(se *model.ServerError) error {
	switch {
	case se.Status == http.StatusUnauthorized:
		return model.ErrUnauthenticated
	case se.Status == http.StatusTooManyRequests || se.Code == CodeQuotaExceeded:
		return model.ErrQuotaExceeded
	case se.Status == http.StatusBadRequest && (se.Code == CodeEmptyPrompt || se.Code == CodeInvalidPrompt):
		return model.ErrInvalidPrompt
	case se.Status == http.StatusBadRequest && (se.Code == CodeUnparseablePrompt || se.Suggestion != ""):
		return model.ErrUnparseablePrompt
	case se.Status == http.StatusServiceUnavailable:
		return model.ErrServiceUnavailable
	case se.Status == http.StatusInternalServerError && (se.Code == CodeAIUnavailable || se.Code == CodeServiceUnavailable):
		return model.ErrServiceUnavailable
	default:
		return model.ErrServerRejected
	}
}
