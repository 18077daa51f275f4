package api

import (
	"context"
	"errors"

	"github.com/hyperengineering/vision/internal/types"
)

// sessionContextKey is the context key for the resolved session.
type sessionContextKey struct{}

// ErrNoSessionInContext indicates no session was found in the context.
var ErrNoSessionInContext = errors.New("no session in context")

// WithSession returns a new context with the session attached.
func WithSession(ctx context.Context, s types.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// SessionFromContext extracts the session from the context.
// Returns ErrNoSessionInContext if not present or missing a user id.
func SessionFromContext(ctx context.Context) (types.Session, error) {
	s, ok := ctx.Value(sessionContextKey{}).(types.Session)
	if !ok || s.UserID == "" {
		return types.Session{}, ErrNoSessionInContext
	}
	return s, nil
}

// MustSessionFromContext extracts the session or panics.
// Use only when middleware guarantees session presence.
func MustSessionFromContext(ctx context.Context) types.Session {
	s, err := SessionFromContext(ctx)
	if err != nil {
		panic("session not in context: middleware misconfiguration")
	}
	return s
}
