package authz

import (
	"context"

	"github.com/google/uuid"
)

// Principal is the authenticated caller. ID is the customer id the caller
// acts for.
type Principal struct {
	ID   uuid.UUID
	Name string
}

type contextKey int

const principalKey contextKey = iota

// WithPrincipal returns a new context with the given principal attached.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext retrieves the principal from the context.
// Returns nil if no principal is present.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}
