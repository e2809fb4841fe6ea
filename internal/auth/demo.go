package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hiroki-koketsu/upahead/internal/model"
)

const (
	demoEmail       = "demo@example.com"
	demoDisplayName = "Demo User"
	demoPhotoURL    = "https://api.dicebear.com/7.x/avataaars/svg?seed=demo&backgroundColor=b6e3f4"

	// DefaultTokenTTL is the lifetime of a demo ID token.
	DefaultTokenTTL = time.Hour
)

// DemoProvider is a local identity provider. It signs in a generated demo
// user and issues HS256 ID tokens for it.
type DemoProvider struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	user    *model.User
	subs    map[int]func(*model.User)
	nextSub int
}

// DemoOption configures a DemoProvider.
type DemoOption func(*DemoProvider)

// WithTokenTTL sets the ID token lifetime.
func WithTokenTTL(ttl time.Duration) DemoOption {
	return func(p *DemoProvider) { p.ttl = ttl }
}

// WithDemoClock replaces the clock used for token timestamps.
func WithDemoClock(now func() time.Time) DemoOption {
	return func(p *DemoProvider) { p.now = now }
}

func NewDemoProvider(secret string, opts ...DemoOption) *DemoProvider {
	p := &DemoProvider{
		secret: []byte(secret),
		ttl:    DefaultTokenTTL,
		now:    time.Now,
		subs:   make(map[int]func(*model.User)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Resume re-establishes a previously signed-in user without notifying
// subscribers.
func (p *DemoProvider) Resume(u model.User) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.user = &u
}

// SignIn returns the current user or mints a new demo user.
func (p *DemoProvider) SignIn(ctx context.Context) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.user != nil {
		u := *p.user
		p.mu.Unlock()
		return &u, nil
	}
	u := model.User{
		ID:          "demo_user_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:9],
		Email:       demoEmail,
		DisplayName: demoDisplayName,
		PhotoURL:    demoPhotoURL,
	}
	p.user = &u
	p.mu.Unlock()

	p.broadcast(&u)
	return &u, nil
}

func (p *DemoProvider) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	p.user = nil
	p.mu.Unlock()

	p.broadcast(nil)
	return nil
}

func (p *DemoProvider) CurrentUser() *model.User {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.user == nil {
		return nil
	}
	u := *p.user
	return &u
}

// IDToken signs a token for the current user.
func (p *DemoProvider) IDToken(ctx context.Context) (string, error) {
	u := p.CurrentUser()
	if u == nil {
		return "", model.ErrNotAuthenticated
	}

	now := p.now()
	claims := jwt.MapClaims{
		"sub":     u.ID,
		"email":   u.Email,
		"name":    u.DisplayName,
		"picture": u.PhotoURL,
		"iat":     now.Unix(),
		"nbf":     now.Unix(),
		"exp":     now.Add(p.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}

// Subscribe calls fn with the current user, then after every change.
func (p *DemoProvider) Subscribe(fn func(*model.User)) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	var current *model.User
	if p.user != nil {
		u := *p.user
		current = &u
	}
	p.mu.Unlock()

	fn(current)

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

func (p *DemoProvider) broadcast(u *model.User) {
	p.mu.Lock()
	fns := make([]func(*model.User), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		if u == nil {
			fn(nil)
			continue
		}
		c := *u
		fn(&c)
	}
}

// ParseIDToken verifies an HS256 ID token and returns its user. Any failure
// wraps model.ErrNotAuthenticated.
func ParseIDToken(secret, tokenString string) (*model.User, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", errors.Join(model.ErrNotAuthenticated, err))
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims: %w", model.ErrNotAuthenticated)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("sub not found: %w", model.ErrNotAuthenticated)
	}
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	picture, _ := claims["picture"].(string)

	return &model.User{ID: sub, Email: email, DisplayName: name, PhotoURL: picture}, nil
}
