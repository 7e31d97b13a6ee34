package authz

import (
	"context"
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// UnauthorizedMessage is the message clients see on a denied request.
const UnauthorizedMessage = "Invalid credentials."

// TextCodeUnauthorized marks errors produced by the gate.
const TextCodeUnauthorized = "UNAUTHORIZED"

// Decision is the outcome of an ownership check.
type Decision int

const (
	Denied Decision = iota
	Allowed
)

func (d Decision) String() string {
	if d == Allowed {
		return "allowed"
	}
	return "denied"
}

// Authorize allows p to act on resources owned by ownerID iff both ids are
// the same UUID. Formatting differences (case, braces, urn prefix) do not
// matter; a missing principal or malformed id is denied.
func Authorize(p *Principal, ownerID string) Decision {
	if p == nil || p.ID == uuid.Nil {
		return Denied
	}
	owner, err := uuid.Parse(strings.TrimSpace(ownerID))
	if err != nil {
		return Denied
	}
	if owner != p.ID {
		return Denied
	}
	return Allowed
}

// Kind is the kind of resource a Scope grants access to.
type Kind int

const (
	// KindCatalog covers resources readable by any caller.
	KindCatalog Kind = iota + 1
	// KindOwner covers resources owned by a single customer.
	KindOwner
)

func (k Kind) String() string {
	switch k {
	case KindCatalog:
		return "catalog"
	case KindOwner:
		return "owner"
	default:
		return "invalid"
	}
}

// Scope is proof that access to a set of resources was checked. The zero
// Scope grants nothing. Owner scopes can only be obtained from a Gate.
type Scope struct {
	kind  Kind
	owner uuid.UUID
}

// Catalog returns the scope for resources that need no ownership check.
func Catalog() Scope {
	return Scope{kind: KindCatalog}
}

// Kind reports the scope kind.
func (s Scope) Kind() Kind {
	return s.kind
}

// Owner returns the owner id of an owner scope.
func (s Scope) Owner() (uuid.UUID, bool) {
	if s.kind != KindOwner {
		return uuid.Nil, false
	}
	return s.owner, true
}

// IsZero reports whether s grants nothing.
func (s Scope) IsZero() bool {
	return s.kind == 0
}

func (s Scope) String() string {
	if s.kind == KindOwner {
		return "owner:" + s.owner.String()
	}
	return s.kind.String()
}

// Gate checks the context principal before owner-scoped operations.
type Gate struct {
	logger zerolog.Logger
}

// NewGate creates a gate.
func NewGate(logger zerolog.Logger) *Gate {
	return &Gate{logger: logger.With().Str("component", "authz").Logger()}
}

// Scope returns the owner scope for ownerID if the context principal owns it,
// or an Unauthorized error.
func (g *Gate) Scope(ctx context.Context, ownerID string) (Scope, error) {
	p := PrincipalFromContext(ctx)
	if Authorize(p, ownerID) == Denied {
		event := g.logger.Info().Str("owner_id", ownerID)
		if p != nil {
			event = event.Str("principal_id", p.ID.String())
		}
		event.Msg("access denied")
		return Scope{}, Unauthorized()
	}
	return Scope{kind: KindOwner, owner: p.ID}, nil
}

// Unauthorized returns a new error for a denied or unauthenticated request.
func Unauthorized() *goerrors.Error {
	return goerrors.New(UnauthorizedMessage, goerrors.CategoryAuth).
		WithCode(401).
		WithTextCode(TextCodeUnauthorized)
}

// IsUnauthorized reports whether err was produced by the gate.
func IsUnauthorized(err error) bool {
	var gerr *goerrors.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.TextCode == TextCodeUnauthorized
}
