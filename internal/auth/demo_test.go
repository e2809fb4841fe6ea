package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hiroki-koketsu/upahead/internal/model"
)

func TestDemoProviderSignIn(t *testing.T) {
	ctx := context.Background()
	p := NewDemoProvider("secret")

	var got []*model.User
	p.Subscribe(func(u *model.User) { got = append(got, u) })

	u, err := p.SignIn(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(u.ID, "demo_user_") || len(u.ID) != len("demo_user_")+9 {
		t.Errorf("ID = %q", u.ID)
	}
	if u.Email != "demo@example.com" || u.DisplayName != "Demo User" || u.PhotoURL == "" {
		t.Errorf("user = %+v", u)
	}

	again, _ := p.SignIn(ctx)
	if again.ID != u.ID {
		t.Error("second sign in minted a new user")
	}

	if len(got) != 2 || got[0] != nil || got[1].ID != u.ID {
		t.Errorf("notifications = %v", got)
	}
}

func TestIDTokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := NewDemoProvider("secret")
	if _, err := p.IDToken(ctx); !errors.Is(err, model.ErrNotAuthenticated) {
		t.Fatalf("IDToken() signed out error = %v", err)
	}

	u, _ := p.SignIn(ctx)
	token, err := p.IDToken(ctx)
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := ParseIDToken("secret", token)
	if err != nil {
		t.Fatalf("ParseIDToken() error = %v", err)
	}
	if *parsed != *u {
		t.Errorf("parsed = %+v, want %+v", parsed, u)
	}
}

func TestParseIDTokenRejects(t *testing.T) {
	ctx := context.Background()

	p := NewDemoProvider("secret")
	p.Resume(model.User{ID: "u1"})
	good, _ := p.IDToken(ctx)

	expiredProvider := NewDemoProvider("secret", WithDemoClock(func() time.Time {
		return time.Now().Add(-2 * time.Hour)
	}))
	expiredProvider.Resume(model.User{ID: "u1"})
	expired, _ := expiredProvider.IDToken(ctx)

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{name: "wrong secret", secret: "other", token: good},
		{name: "expired", secret: "secret", token: expired},
		{name: "garbage", secret: "secret", token: "not-a-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseIDToken(tt.secret, tt.token); !errors.Is(err, model.ErrNotAuthenticated) {
				t.Errorf("ParseIDToken() error = %v, want ErrNotAuthenticated", err)
			}
		})
	}
}
