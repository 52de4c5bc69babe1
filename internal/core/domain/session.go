package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL applies when the backend token carries no expiry.
const DefaultSessionTTL = 24 * time.Hour

// SessionUser is the logged-in panel user.
type SessionUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Session binds a dashboard login to the backend bearer token.
type Session struct {
	ID        uuid.UUID
	Token     string
	User      SessionUser
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewSession creates a session for a fresh backend login.
// A zero expiresAt falls back to DefaultSessionTTL.
func NewSession(token string, user SessionUser, now, expiresAt time.Time) *Session {
	if expiresAt.IsZero() {
		expiresAt = now.Add(DefaultSessionTTL)
	}
	return &Session{
		ID:        uuid.New(),
		Token:     token,
		User:      user,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}
}

// IsExpired reports whether the session is past its expiry at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

type sessionContextKey struct{}

// ContextWithSession returns a context carrying the session.
func ContextWithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// SessionFromContext returns the session carried by ctx.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(*Session)
	return s, ok && s != nil
}
