package middleware

import (
	"context"

	"github.com/abdulbasit0-UI/storefront-backend/internal/identity"
)

type (
	userIDKey   struct{}
	roleKey     struct{}
	identityKey struct{}
)

func lookup[T any](ctx context.Context, key any) T {
	var zero T
	if ctx == nil {
		return zero
	}
	if v, ok := ctx.Value(key).(T); ok {
		return v
	}
	return zero
}

func with(ctx context.Context, key, value any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}

func UserIDFromContext(ctx context.Context) string { return lookup[string](ctx, userIDKey{}) }

func RoleFromContext(ctx context.Context) string { return lookup[string](ctx, roleKey{}) }

// IdentityFromContext returns the cart owner resolved for the request. The
// zero Identity means none was resolved.
func IdentityFromContext(ctx context.Context) identity.Identity {
	return lookup[identity.Identity](ctx, identityKey{})
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return with(ctx, userIDKey{}, userID)
}

func WithRole(ctx context.Context, role string) context.Context {
	return with(ctx, roleKey{}, role)
}

func WithIdentity(ctx context.Context, id identity.Identity) context.Context {
	return with(ctx, identityKey{}, id)
}
