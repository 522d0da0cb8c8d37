package auth

import (
	"context"
	"time"
)

// Session is the identity derived from a validated access token. It lives
// for one request and is never persisted.
type Session struct {
	UserID    string
	Email     string
	Role      Role
	JTI       string
	ExpiresAt time.Time
}

type sessionKey struct{}

// WithSession stores s in ctx for downstream handlers.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session attached by the session middleware.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s != nil
}
