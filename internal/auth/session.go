package auth

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hiroki-koketsu/upahead/internal/model"
)

// Session holds the signed-in user for one application root.
type Session struct {
	provider  IdentityProvider
	persister SessionPersister
	logger    *slog.Logger

	mu          sync.Mutex
	user        *model.User
	loading     bool
	initialized bool
	unsubscribe func()

	subMu   sync.Mutex
	subs    map[int]func(*model.User)
	nextSub int
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithPersister restores the session from p and saves every change to it.
func WithPersister(p SessionPersister) SessionOption {
	return func(s *Session) { s.persister = p }
}

// NewSession creates a session over provider. With a persister the last
// saved user and initialized flag are restored before it returns.
func NewSession(ctx context.Context, provider IdentityProvider, logger *slog.Logger, opts ...SessionOption) *Session {
	s := &Session{
		provider: provider,
		logger:   logger,
		subs:     make(map[int]func(*model.User)),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.persister != nil {
		state, ok, err := s.persister.LoadSession(ctx)
		switch {
		case err != nil:
			logger.WarnContext(ctx, "failed to restore session", slog.Any("error", err))
		case ok:
			s.user = cloneUser(state.User)
			s.initialized = state.Initialized
		}
	}
	return s
}

// Initialize starts mirroring the provider. Calling it again does nothing.
func (s *Session) Initialize() {
	s.mu.Lock()
	if s.unsubscribe != nil {
		s.mu.Unlock()
		return
	}
	// A placeholder marks the subscription as in progress; the provider
	// calls back synchronously and setUser takes the lock.
	s.unsubscribe = func() {}
	s.mu.Unlock()

	unsubscribe := s.provider.Subscribe(func(u *model.User) {
		s.setUser(context.Background(), u)
	})

	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()
}

// SignIn asks the provider for a user. The result is applied immediately
// and again through the subscription.
func (s *Session) SignIn(ctx context.Context) (*model.User, error) {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	u, err := s.provider.SignIn(ctx)
	if err != nil {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
		s.logger.ErrorContext(ctx, "sign in failed", slog.Any("error", err))
		return nil, err
	}

	s.setUser(ctx, u)
	s.logger.InfoContext(ctx, "signed in", slog.String("user", u.ID))
	return cloneUser(u), nil
}

// SignOut ends the provider session and clears the user.
func (s *Session) SignOut(ctx context.Context) error {
	if err := s.provider.SignOut(ctx); err != nil {
		s.logger.ErrorContext(ctx, "sign out failed", slog.Any("error", err))
		return err
	}
	s.setUser(ctx, nil)
	s.logger.InfoContext(ctx, "signed out")
	return nil
}

// User returns a copy of the signed-in user, nil when signed out.
func (s *Session) User() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneUser(s.user)
}

// UserID returns the signed-in user's id, empty when signed out.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return ""
	}
	return s.user.ID
}

// Loading reports whether the provider has not answered yet.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Initialized reports whether the provider has answered at least once.
func (s *Session) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// IsAuthenticated reports whether a user is signed in.
func (s *Session) IsAuthenticated() bool {
	return s.UserID() != ""
}

// Token returns a bearer token for the backend.
func (s *Session) Token(ctx context.Context) (string, error) {
	if !s.IsAuthenticated() {
		return "", model.ErrNotAuthenticated
	}
	return s.provider.IDToken(ctx)
}

// Subscribe registers fn to run after every user change.
func (s *Session) Subscribe(fn func(*model.User)) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

// Close drops the provider subscription.
func (s *Session) Close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (s *Session) setUser(ctx context.Context, u *model.User) {
	s.mu.Lock()
	changed := userID(s.user) != userID(u) || !s.initialized
	s.user = cloneUser(u)
	s.loading = false
	s.initialized = true
	state := SessionState{User: cloneUser(s.user), Initialized: s.initialized}
	s.mu.Unlock()

	if !changed {
		return
	}

	if s.persister != nil {
		if err := s.persister.SaveSession(ctx, state); err != nil {
			s.logger.WarnContext(ctx, "failed to persist session", slog.Any("error", err))
		}
	}

	s.subMu.Lock()
	fns := make([]func(*model.User), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(cloneUser(u))
	}
}

func userID(u *model.User) string {
	if u == nil {
		return ""
	}
	return u.ID
}

func cloneUser(u *model.User) *model.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
