package identity

import (
	"context"
	"time"
)

// RawSession is the provider-side view of an authenticated session,
// before any tenant enrichment happens.
type RawSession struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ChangeFunc is invoked on every auth state transition. A nil session
// means the user signed out.
type ChangeFunc func(session *RawSession)

// Provider abstracts the upstream identity service. Implementations
// must deliver change notifications sequentially, in the order the
// transitions happened.
type Provider interface {
	// CurrentSession returns the active session, or (nil, nil) when
	// nobody is signed in.
	CurrentSession(ctx context.Context) (*RawSession, error)

	// OnSessionChange registers a callback for auth transitions and
	// returns a function that unregisters it.
	OnSessionChange(fn ChangeFunc) (unsubscribe func())

	SignInWithPassword(ctx context.Context, email, password string) (*RawSession, error)
	SignOut(ctx context.Context) error
}
