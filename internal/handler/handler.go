// Package handler exposes the session, task store, AI and import services
// as a JSON and WebSocket API for a browser front end.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hiroki-koketsu/upahead/internal/ai"
	"github.com/hiroki-koketsu/upahead/internal/auth"
	"github.com/hiroki-koketsu/upahead/internal/importer"
	"github.com/hiroki-koketsu/upahead/internal/model"
	"github.com/hiroki-koketsu/upahead/internal/store"
	"github.com/hiroki-koketsu/upahead/internal/telemetry"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/hiroki-koketsu/upahead/internal/handler")

// Deps are the services the API fronts.
type Deps struct {
	Session  *auth.Session
	Store    *store.Store
	AI       *ai.Service
	Booster  *ai.Booster
	Importer *importer.Service
	Hub      *Hub

	// TokenSecret verifies an optional bearer token against the session
	// user. Empty disables the check.
	TokenSecret string
}

// Handler serves the gateway API.
type Handler struct {
	Deps
	logger  *slog.Logger
	metrics *telemetry.Metrics
	prom    *Prometheus
	now     func() time.Time
}

// New creates a Handler. metrics and prom may be nil.
func New(deps Deps, logger *slog.Logger, metrics *telemetry.Metrics, prom *Prometheus) *Handler {
	return &Handler{
		Deps:    deps,
		logger:  logger,
		metrics: metrics,
		prom:    prom,
		now:     time.Now,
	}
}

// Routes returns the chi router with the API routes, to be mounted under
// /api/v1.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/session", h.instrument("/api/v1/session", h.GetSession))
	r.Post("/session", h.instrument("/api/v1/session", h.SignIn))
	r.Delete("/session", h.instrument("/api/v1/session", h.SignOut))

	r.Group(func(r chi.Router) {
		r.Use(h.requireSession)

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", h.instrument("/api/v1/tasks", h.ListTasks))
			r.Post("/", h.instrument("/api/v1/tasks", h.CreateTask))
			r.Post("/refresh", h.instrument("/api/v1/tasks/refresh", h.RefreshTasks))
			r.Post("/more", h.instrument("/api/v1/tasks/more", h.LoadMoreTasks))
			r.Put("/{id}", h.instrument("/api/v1/tasks/{id}", h.UpdateTask))
			r.Delete("/{id}", h.instrument("/api/v1/tasks/{id}", h.DeleteTask))
			r.Post("/{id}/toggle", h.instrument("/api/v1/tasks/{id}/toggle", h.ToggleTask))
			r.Get("/{id}/boost", h.instrument("/api/v1/tasks/{id}/boost", h.BoostTask))
		})

		r.Get("/ai/usage", h.instrument("/api/v1/ai/usage", h.AIUsage))
		r.Post("/ai/tasks", h.instrument("/api/v1/ai/tasks", h.CreateTasksFromPrompt))

		r.Post("/import", h.instrument("/api/v1/import", h.Import))
	})

	r.Get("/import/template", h.instrument("/api/v1/import/template", h.ImportTemplate))

	return r
}

// Health returns a health check response.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, model.Health{
		Status:    "ok",
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
}

// requireSession rejects requests without a signed-in user. A bearer token,
// when sent, must belong to that user.
func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := h.Session.UserID()
		if userID == "" {
			h.respondErr(w, r, model.ErrNotAuthenticated)
			return
		}

		if header := r.Header.Get("Authorization"); header != "" && h.TokenSecret != "" {
			token := strings.TrimPrefix(header, "Bearer ")
			u, err := auth.ParseIDToken(h.TokenSecret, token)
			if err != nil || u.ID != userID {
				h.logger.WarnContext(r.Context(), "bearer token rejected", slog.Any("error", err))
				h.respondErr(w, r, model.ErrNotAuthenticated)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// instrument records the request counter and duration for route.
func (h *Handler) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next(ww, r)

		if h.metrics == nil {
			return
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		h.metrics.RecordRequest(r.Context(), r.Method, route, status, time.Since(start))
	}
}

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Error      string                 `json:"error"`
	Code       string                 `json:"code,omitempty"`
	Suggestion string                 `json:"suggestion,omitempty"`
	Fields     model.ValidationErrors `json:"fields,omitempty"`
	Usage      *model.Usage           `json:"usage,omitempty"`
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case model.IsKind(err, model.ErrNotAuthenticated, model.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case model.IsKind(err, model.ErrRemoteUnavailable, model.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrServerRejected):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}

	var fields model.ValidationErrors
	if errors.As(err, &fields) {
		body.Fields = fields
	}
	var se *model.ServerError
	if errors.As(err, &se) {
		body.Code, body.Suggestion = se.Code, se.Suggestion
	}
	var qe *model.QuotaError
	if errors.As(err, &qe) {
		body.Usage = &qe.Usage
	}
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		body = errorBody{Error: "internal error"}
	}

	h.respondJSON(w, status, body)
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, errorBody{Error: message})
}

// ServeWS handles GET /ws. The client first receives the current session
// and store snapshot, then every change.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	h.Hub.ServeWS(w, r, func() []Message {
		return []Message{
			{Type: MessageSession, Data: h.sessionState()},
			{Type: MessageSnapshot, Data: h.Store.Snapshot()},
		}
	})
}

// Watch forwards store and session changes to the hub until stop is called.
func (h *Handler) Watch() (stop func()) {
	unsubStore := h.Store.Subscribe(func(s store.Snapshot) {
		h.Hub.Broadcast(Message{Type: MessageSnapshot, Data: s})
	})
	unsubSession := h.Session.Subscribe(func(*model.User) {
		h.Hub.Broadcast(Message{Type: MessageSession, Data: h.sessionState()})
	})
	return func() {
		unsubStore()
		unsubSession()
	}
}
