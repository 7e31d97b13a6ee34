package testsupport

import (
	"context"
	"sync"

	"github.com/goliatone/go-catalog-api/cache"
)

// CountingCache wraps a CacheService and records every call made to it.
type CountingCache struct {
	inner cache.CacheService

	mu          sync.Mutex
	gets        []string
	invalidated [][]string
	deletes     []string
	fetches     int
}

// NewCountingCache wraps inner.
func NewCountingCache(inner cache.CacheService) *CountingCache {
	return &CountingCache{inner: inner}
}

func (c *CountingCache) GetOrFetch(ctx context.Context, key string, tags []string, fetchFn cache.FetchFn) ([]byte, error) {
	c.mu.Lock()
	c.gets = append(c.gets, key)
	c.mu.Unlock()

	return c.inner.GetOrFetch(ctx, key, tags, func(ctx context.Context) ([]byte, error) {
		c.mu.Lock()
		c.fetches++
		c.mu.Unlock()
		return fetchFn(ctx)
	})
}

func (c *CountingCache) InvalidateTags(ctx context.Context, tags ...string) error {
	c.mu.Lock()
	c.invalidated = append(c.invalidated, append([]string(nil), tags...))
	c.mu.Unlock()
	return c.inner.InvalidateTags(ctx, tags...)
}

func (c *CountingCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	c.deletes = append(c.deletes, key)
	c.mu.Unlock()
	return c.inner.Delete(ctx, key)
}

// Calls returns the total number of calls of any kind.
func (c *CountingCache) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.gets) + len(c.invalidated) + len(c.deletes)
}

// Gets returns the keys passed to GetOrFetch in call order.
func (c *CountingCache) Gets() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.gets...)
}

// Fetches returns how many times a producer actually ran.
func (c *CountingCache) Fetches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches
}

// Invalidations returns the tag lists passed to InvalidateTags.
func (c *CountingCache) Invalidations() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]string(nil), c.invalidated...)
}

// Reset clears the recorded calls.
func (c *CountingCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets, c.invalidated, c.deletes, c.fetches = nil, nil, nil, 0
}
