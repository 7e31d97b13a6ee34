// Package invalidation maps committed mutations to the cache tags they make
// stale.
package invalidation

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-catalog-api/cache"
	"github.com/rs/zerolog"
)

// ResourceType identifies a family of cached listings.
type ResourceType int

const (
	// Catalog resources are readable by everyone (products).
	Catalog ResourceType = iota + 1
	// OwnerScoped resources belong to a customer (users).
	OwnerScoped
)

func (rt ResourceType) String() string {
	switch rt {
	case Catalog:
		return "catalog"
	case OwnerScoped:
		return "owner_scoped"
	default:
		return fmt.Sprintf("resource_type(%d)", int(rt))
	}
}

// Tags shared by every listing of a resource type.
const (
	TagProducts = "productsCache"
	TagUsers    = "usersCache"
)

// ErrUnknownResourceType is returned for a resource type with no mapping.
var ErrUnknownResourceType = errors.New("invalidation: unknown resource type")

// Bus invalidates every cached listing of a resource type after a mutation
// of that type commits. Invalidation is coarse: one create, update or
// delete evicts every page of the type, for every owner.
type Bus struct {
	invalidator cache.Invalidator
	mapping     map[ResourceType][]string
	logger      zerolog.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithMapping sets the tags for a resource type, replacing the default.
func WithMapping(rt ResourceType, tags ...string) Option {
	return func(b *Bus) {
		b.mapping[rt] = append([]string(nil), tags...)
	}
}

// WithLogger sets the bus logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// NewBus creates a bus that invalidates through inv.
func NewBus(inv cache.Invalidator, opts ...Option) *Bus {
	b := &Bus{
		invalidator: inv,
		mapping: map[ResourceType][]string{
			Catalog:     {TagProducts},
			OwnerScoped: {TagUsers},
		},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With().Str("component", "invalidation").Logger()
	return b
}

// Tags returns the tags invalidated for rt.
func (b *Bus) Tags(rt ResourceType) []string {
	return append([]string(nil), b.mapping[rt]...)
}

// OnMutated invalidates the tags of rt. Call it only after the mutation was
// committed, and write the response only after it returns.
func (b *Bus) OnMutated(ctx context.Context, rt ResourceType) error {
	tags, ok := b.mapping[rt]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResourceType, rt)
	}
	if b.invalidator == nil || len(tags) == 0 {
		return nil
	}

	if err := b.invalidator.InvalidateTags(ctx, tags...); err != nil {
		return fmt.Errorf("invalidate %s: %w", rt, err)
	}

	b.logger.Debug().
		Stringer("resource_type", rt).
		Strs("tags", tags).
		Msg("listings invalidated")
	return nil
}
