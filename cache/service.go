package cache

import (
	"context"

	"github.com/goliatone/go-catalog-api/internal/cacheinfra"
)

// FetchFn is the producer CacheService calls on a miss.
type FetchFn = func(ctx context.Context) ([]byte, error)

// CacheService exposes the read-through and invalidation operations the
// repository decorator and the invalidation bus depend on.
type CacheService interface {
	// GetOrFetch returns the cached value for key, or runs fetchFn once for
	// all concurrent callers and stores its result under tags.
	GetOrFetch(ctx context.Context, key string, tags []string, fetchFn FetchFn) ([]byte, error)
	Invalidator
	Delete(ctx context.Context, key string) error
}

// Invalidator evicts every entry tagged with any of the given tags.
type Invalidator interface {
	InvalidateTags(ctx context.Context, tags ...string) error
}

// Store is the default CacheService implementation.
type Store = cacheinfra.TagStore

// Stats holds the running counters of a Store.
type Stats = cacheinfra.Stats

var _ CacheService = (*Store)(nil)

// GetOrFetch is a type-safe wrapper over CacheService. Values are encoded
// with the package codec before they are stored; errors returned by fetchFn
// reach the caller unchanged.
func GetOrFetch[T any](ctx context.Context, service CacheService, key string, tags []string, fetchFn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	data, err := service.GetOrFetch(ctx, key, tags, func(ctx context.Context) ([]byte, error) {
		value, err := fetchFn(ctx)
		if err != nil {
			return nil, err
		}
		return Encode(value)
	})
	if err != nil {
		return zero, err
	}

	var result T
	if err := Decode(data, &result); err != nil {
		return zero, err
	}
	return result, nil
}
