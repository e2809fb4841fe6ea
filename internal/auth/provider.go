// Package auth mirrors the identity provider's session into an explicit
// state container that the rest of the application observes.
package auth

import (
	"context"

	"github.com/hiroki-koketsu/upahead/internal/model"
)

// IdentityProvider is the external identity service. Subscribe must call fn
// with the current user (nil when signed out) once right after registering
// and again after every change.
type IdentityProvider interface {
	SignIn(ctx context.Context) (*model.User, error)
	SignOut(ctx context.Context) error
	CurrentUser() *model.User
	IDToken(ctx context.Context) (string, error)
	Subscribe(fn func(*model.User)) (unsubscribe func())
}

// SessionState is the persisted part of a session.
type SessionState struct {
	User        *model.User `json:"user"`
	Initialized bool        `json:"initialized"`
}

// SessionPersister stores the session between runs.
type SessionPersister interface {
	LoadSession(ctx context.Context) (SessionState, bool, error)
	SaveSession(ctx context.Context, state SessionState) error
}
