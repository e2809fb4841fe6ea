package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hiroki-koketsu/upahead/internal/model"
)

type promptRequest struct {
	Prompt string `json:"prompt"`
}

// AIUsage handles GET /api/v1/ai/usage. A failed read still answers with
// the default usage.
func (h *Handler) AIUsage(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "Handler.AIUsage")
	defer span.End()

	usage, err := h.AI.UsageInfo(ctx)
	if err != nil {
		if errors.Is(err, model.ErrNotAuthenticated) {
			h.respondErr(w, r, err)
			return
		}
		h.logger.WarnContext(ctx, "usage read failed, reporting default", slog.Any("error", err))
	}

	h.respondJSON(w, http.StatusOK, usage)
}

// CreateTasksFromPrompt handles POST /api/v1/ai/tasks.
func (h *Handler) CreateTasksFromPrompt(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "Handler.CreateTasksFromPrompt")
	defer span.End()

	var req promptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.AI.CreateTasksFromPrompt(ctx, req.Prompt)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	// Created tasks land in the primary store through the backend.
	if err := h.Store.RefreshTasks(ctx); err != nil {
		h.logger.WarnContext(ctx, "refresh after AI creation failed", slog.Any("error", err))
	}
	h.respondJSON(w, http.StatusOK, result)
}
