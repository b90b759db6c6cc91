package middleware

import (
	"context"

	"github.com/angelmondragon/wishlist-backend/internal/identity"
)

type contextKey string

const ctxPrincipal contextKey = "principal"

// PrincipalFromContext returns the authenticated caller, or nil outside an authenticated route.
func PrincipalFromContext(ctx context.Context) *identity.Principal {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxPrincipal).(*identity.Principal); ok {
		return v
	}
	return nil
}

// WithPrincipal injects the resolved caller into the context.
func WithPrincipal(ctx context.Context, principal *identity.Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxPrincipal, principal)
}
