package handler

import (
	"log/slog"
	"net/http"

	"github.com/hiroki-koketsu/upahead/internal/model"
)

type sessionResponse struct {
	User          *model.User `json:"user"`
	Initialized   bool        `json:"initialized"`
	Loading       bool        `json:"loading"`
	Authenticated bool        `json:"authenticated"`
	Token         string      `json:"token,omitempty"`
}

func (h *Handler) sessionState() sessionResponse {
	return sessionResponse{
		User:          h.Session.User(),
		Initialized:   h.Session.Initialized(),
		Loading:       h.Session.Loading(),
		Authenticated: h.Session.IsAuthenticated(),
	}
}

// GetSession handles GET /api/v1/session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.sessionState())
}

// SignIn handles POST /api/v1/session.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "Handler.SignIn")
	defer span.End()

	u, err := h.Session.SignIn(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "sign in failed", slog.Any("error", err))
		h.respondErr(w, r, err)
		return
	}

	resp := h.sessionState()
	resp.User = u
	if token, err := h.Session.Token(ctx); err == nil {
		resp.Token = token
	} else {
		h.logger.WarnContext(ctx, "id token unavailable", slog.Any("error", err))
	}

	h.logger.InfoContext(ctx, "signed in", slog.String("user", u.ID))
	h.respondJSON(w, http.StatusOK, resp)
}

// SignOut handles DELETE /api/v1/session.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "Handler.SignOut")
	defer span.End()

	if err := h.Session.SignOut(ctx); err != nil {
		h.respondErr(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "signed out")
	w.WriteHeader(http.StatusNoContent)
}
