package auth

import (
	"context"

	"github.com/prn-tf/pantry/internal/domain"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// userContextKey holds the authenticated *domain.User.
const userContextKey contextKey = "auth_user"

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(userContextKey).(*domain.User)
	return user, ok && user != nil
}
