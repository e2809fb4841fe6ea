package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hiroki-koketsu/upahead/internal/model"
	"go.opentelemetry.io/otel/attribute"
)

var filters = []model.Filter{model.FilterAll, model.FilterUpcoming, model.FilterImportant, model.FilterCompleted}

type listResponse struct {
	Filter  model.Filter         `json:"filter"`
	Sort    model.SortBy         `json:"sort"`
	Tasks   []model.Task         `json:"tasks"`
	Counts  map[model.Filter]int `json:"counts"`
	HasMore bool                 `json:"hasMore"`
	Loading bool                 `json:"loading"`
}

// ListTasks handles GET /api/v1/tasks?filter=&sort=.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "Handler.ListTasks")
	defer span.End()

	filter, err := model.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		h.respondErr(w, r, model.ValidationErrors{{Field: "filter", Message: err.Error()}})
		return
	}
	sortBy, err := model.ParseSort(r.URL.Query().Get("sort"))
	if err != nil {
		h.respondErr(w, r, model.ValidationErrors{{Field: "sort", Message: err.Error()}})
		return
	}
	span.SetAttributes(
		attribute.String("task.filter", string(filter)),
		attribute.String("task.sort", string(sortBy)),
	)

	counts := make(map[model.Filter]int, len(filters))
	for _, f := range filters {
		counts[f] = len(h.Store.TasksByFilter(f))
	}
	tasks := h.Store.TasksByFilter(filter)
	model.SortTasksBy(tasks, sortBy)

	h.logger.DebugContext(ctx, "listed tasks", slog.String("filter", string(filter)), slog.Int("count", len(tasks)))
	h.respondJSON(w, http.StatusOK, listResponse{
		Filter:  filter,
		Sort:    sortBy,
		Tasks:   tasks,
		Counts:  counts,
		HasMore: h.Store.HasMore(),
		Loading: h.Store.Loading(),
	})
}

// CreateTask handles POST /api/v1/tasks.
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "Handler.CreateTask")
	defer span.End()

	var req model.NewTask
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(h.now()); err != nil {
		h.respondErr(w, r, err)
		return
	}

	if err := h.Store.AddTask(ctx, req); err != nil {
		h.logger.ErrorContext(ctx, "failed to create task", slog.Any("error", err))
		h.respondErr(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "task created", slog.String("title", req.Title))
	h.respondJSON(w, http.StatusCreated, h.Store.Snapshot())
}

// UpdateTask handles PUT /api/v1/tasks/{id}.
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "Handler.UpdateTask")
	defer span.End()

	id := chi.URLParam(r, "id")
	span.SetAttributes(attribute.String("task.id", id))

	var patch model.TaskPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Store.UpdateTask(ctx, id, patch); err != nil {
		h.logger.WarnContext(ctx, "failed to update task", slog.String("id", id), slog.Any("error", err))
		h.respondErr(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "task updated", slog.String("id", id))
	h.respondJSON(w, http.StatusOK, h.Store.Snapshot())
}

// DeleteTask handles DELETE /api/v1/tasks/{id}.
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "Handler.DeleteTask")
	defer span.End()

	id := chi.URLParam(r, "id")
	span.SetAttributes(attribute.String("task.id", id))

	if err := h.Store.DeleteTask(ctx, id); err != nil {
		h.logger.WarnContext(ctx, "failed to delete task", slog.String("id", id), slog.Any("error", err))
		h.respondErr(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "task deleted", slog.String("id", id))
	w.WriteHeader(http.StatusNoContent)
}

// ToggleTask handles POST /api/v1/tasks/{id}/toggle.
func (h *Handler) ToggleTask(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "Handler.ToggleTask")
	defer span.End()

	id := chi.URLParam(r, "id")
	span.SetAttributes(attribute.String("task.id", id))

	if err := h.Store.ToggleTask(ctx, id); err != nil {
		h.respondErr(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, h.Store.Snapshot())
}

// RefreshTasks handles POST /api/v1/tasks/refresh.
func (h *Handler) RefreshTasks(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "Handler.RefreshTasks")
	defer span.End()

	err := h.Store.RefreshTasks(ctx)
	h.prom.observeRefresh(TriggerAPI, err)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, h.Store.Snapshot())
}

// LoadMoreTasks handles POST /api/v1/tasks/more.
func (h *Handler) LoadMoreTasks(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "Handler.LoadMoreTasks")
	defer span.End()

	if err := h.Store.LoadMoreTasks(ctx); err != nil {
		h.respondErr(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, h.Store.Snapshot())
}

// BoostTask handles GET /api/v1/tasks/{id}/boost.
func (h *Handler) BoostTask(w http.ResponseWriter, r *http.Request) {
	_, span := tracer.Start(r.Context(), "Handler.BoostTask")
	defer span.End()

	id := chi.URLParam(r, "id")
	for _, t := range h.Store.Tasks() {
		if t.ID == id {
			h.respondJSON(w, http.StatusOK, h.Booster.Boost(t))
			return
		}
	}

	h.respondErr(w, r, fmt.Errorf("task %s: %w", id, model.ErrTaskNotFound))
}
