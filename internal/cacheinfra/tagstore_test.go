package cacheinfra

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// memBackend is an in-memory Backend with switchable failures.
type memBackend struct {
	mu         sync.Mutex
	values     map[string][]byte
	failGet    atomic.Bool
	failSet    atomic.Bool
	failDelete atomic.Bool
	closed     atomic.Bool
}

func newMemBackend() *memBackend {
	return &memBackend{values: make(map[string][]byte)}
}

var errBackendDown = errors.New("backend down")

func (b *memBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	if b.failGet.Load() {
		return nil, false, errBackendDown
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	value, ok := b.values[key]
	return value, ok, nil
}

func (b *memBackend) Set(_ context.Context, key string, value []byte) error {
	if b.failSet.Load() {
		return errBackendDown
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
	return nil
}

func (b *memBackend) Delete(_ context.Context, keys ...string) error {
	if b.failDelete.Load() {
		return errBackendDown
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, key := range keys {
		delete(b.values, key)
	}
	return nil
}

func (b *memBackend) Close() error {
	b.closed.Store(true)
	return nil
}

// drop simulates the backend evicting every value on its own.
func (b *memBackend) drop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values = make(map[string][]byte)
}

func (b *memBackend) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.values)
}

// countingFetch is a producer that records how often it ran.
type countingFetch struct {
	calls   atomic.Int64
	value   []byte
	err     error
	started chan struct{}
	release chan struct{}
}

func (c *countingFetch) fetch(ctx context.Context) ([]byte, error) {
	c.calls.Add(1)
	if c.started != nil {
		select {
		case c.started <- struct{}{}:
		default:
		}
	}
	if c.release != nil {
		select {
		case <-c.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.value, nil
}

func (c *countingFetch) count() int64 {
	return c.calls.Load()
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestStore(t *testing.T, backend Backend, mutate func(*Config)) *TagStore {
	t.Helper()

	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	store, err := NewTagStore(cfg, backend, testLogger())
	if err != nil {
		t.Fatalf("NewTagStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNewTagStore(t *testing.T) {
	t.Run("nil backend", func(t *testing.T) {
		_, err := NewTagStore(DefaultConfig(), nil, testLogger())
		if !errors.Is(err, ErrNilBackend) {
			t.Errorf("expected ErrNilBackend, got %v", err)
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.TTL = 0
		_, err := NewTagStore(cfg, newMemBackend(), testLogger())
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected ConfigError, got %v", err)
		}
		if cfgErr.Field != "TTL" {
			t.Errorf("expected TTL field, got %s", cfgErr.Field)
		}
	})
}

func TestTagStore_GetOrFetch_HitAfterMiss(t *testing.T) {
	store := newTestStore(t, newMemBackend(), nil)
	ctx := context.Background()
	producer := &countingFetch{value: []byte("products-page-1")}

	first, err := store.GetOrFetch(ctx, "list_products::page=1", []string{"productsCache"}, producer.fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := store.GetOrFetch(ctx, "list_products::page=1", []string{"productsCache"}, producer.fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if string(first) != "products-page-1" || string(second) != "products-page-1" {
		t.Errorf("unexpected values %q and %q", first, second)
	}

	if producer.count() != 1 {
		t.Errorf("expected producer to run once, ran %d times", producer.count())
	}

	stats := store.Stats()
	if stats.Misses != 1 || stats.Hits != 1 {
		t.Errorf("expected 1 miss and 1 hit, got %+v", stats)
	}

	if keys := store.Keys("productsCache"); len(keys) != 1 || keys[0] != "list_products::page=1" {
		t.Errorf("expected key indexed under productsCache, got %v", keys)
	}
}

func TestTagStore_GetOrFetch_NilFetch(t *testing.T) {
	store := newTestStore(t, newMemBackend(), nil)

	_, err := store.GetOrFetch(context.Background(), "k", nil, nil)
	if !errors.Is(err, ErrNilFetchFn) {
		t.Errorf("expected ErrNilFetchFn, got %v", err)
	}
}

func TestTagStore_GetOrFetch_CanceledContext(t *testing.T) {
	store := newTestStore(t, newMemBackend(), nil)
	producer := &countingFetch{value: []byte("v")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.GetOrFetch(ctx, "k", nil, producer.fetch)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if producer.count() != 0 {
		t.Errorf("expected producer not to run, ran %d times", producer.count())
	}
}

func TestTagStore_GetOrFetch_SingleFlight(t *testing.T) {
	const callers = 50

	store := newTestStore(t, newMemBackend(), func(c *Config) { c.WaitTimeout = 0 })
	producer := &countingFetch{
		value:   []byte("shared"),
		release: make(chan struct{}),
	}

	var wg sync.WaitGroup
	results := make([][]byte, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = store.GetOrFetch(context.Background(), "list_users", []string{"usersCache"}, producer.fetch)
		}(i)
	}

	waitFor(t, "all callers to join the flight", func() bool {
		stats := store.Stats()
		return stats.Misses == 1 && stats.Shared == callers-1
	})
	close(producer.release)
	wg.Wait()

	if producer.count() != 1 {
		t.Fatalf("expected producer to run once, ran %d times", producer.count())
	}

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Errorf("caller %d: unexpected error %v", i, errs[i])
		}
		if string(results[i]) != "shared" {
			t.Errorf("caller %d: expected shared, got %q", i, results[i])
		}
	}

	if store.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", store.Len())
	}
}

func TestTagStore_GetOrFetch_ErrorNotCached(t *testing.T) {
	store := newTestStore(t, newMemBackend(), nil)
	ctx := context.Background()

	dbErr := errors.New("database unavailable")
	failing := &countingFetch{err: dbErr}

	_, err := store.GetOrFetch(ctx, "k", []string{"productsCache"}, failing.fetch)
	if err != dbErr {
		t.Fatalf("expected producer error unchanged, got %v", err)
	}

	if store.Len() != 0 {
		t.Errorf("expected no entries after failure, got %d", store.Len())
	}

	ok := &countingFetch{value: []byte("recovered")}
	value, err := store.GetOrFetch(ctx, "k", []string{"productsCache"}, ok.fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(value) != "recovered" {
		t.Errorf("expected recovered, got %q", value)
	}
	if ok.count() != 1 {
		t.Errorf("expected retry to call producer, got %d calls", ok.count())
	}
}

func TestTagStore_GetOrFetch_ErrorSharedWithWaiters(t *testing.T) {
	store := newTestStore(t, newMemBackend(), func(c *Config) { c.WaitTimeout = 0 })

	dbErr := errors.New("boom")
	producer := &countingFetch{err: dbErr, release: make(chan struct{})}

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.GetOrFetch(context.Background(), "k", nil, producer.fetch)
		}(i)
	}

	waitFor(t, "callers to join", func() bool { return store.Stats().Shared == 4 })
	close(producer.release)
	wg.Wait()

	for i, err := range errs {
		if err != dbErr {
			t.Errorf("caller %d: expected shared error, got %v", i, err)
		}
	}
	if producer.count() != 1 {
		t.Errorf("expected 1 producer call, got %d", producer.count())
	}
}

func TestTagStore_GetOrFetch_ProducerPanic(t *testing.T) {
	store := newTestStore(t, newMemBackend(), nil)

	_, err := store.GetOrFetch(context.Background(), "k", nil, func(context.Context) ([]byte, error) {
		panic("kaboom")
	})
	if err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Fatalf("expected panic converted to error, got %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("expected no entries, got %d", store.Len())
	}
}

func TestTagStore_GetOrFetch_NormalizesTags(t *testing.T) {
	store := newTestStore(t, newMemBackend(), nil)
	producer := &countingFetch{value: []byte("v")}

	_, err := store.GetOrFetch(context.Background(), "k", []string{"usersCache", "", "productsCache", "usersCache"}, producer.fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tags, ok := store.Tags("k")
	if !ok {
		t.Fatal("expected key to be present")
	}
	if strings.Join(tags, ",") != "productsCache,usersCache" {
		t.Errorf("expected sorted unique tags, got %v", tags)
	}

	if _, ok := store.Tags("missing"); ok {
		t.Error("expected missing key to report absent")
	}
}

func TestTagStore_InvalidateTags(t *testing.T) {
	tests := []struct {
		name       string
		invalidate []string
		remaining  []string
	}{
		{
			name:       "single tag removes only its keys",
			invalidate: []string{"productsCache"},
			remaining:  []string{"users"},
		},
		{
			name:       "shared tag removes keys carrying it",
			invalidate: []string{"usersCache"},
			remaining:  []string{"products"},
		},
		{
			name:       "multiple tags",
			invalidate: []string{"productsCache", "usersCache"},
			remaining:  nil,
		},
		{
			name:       "unknown tag is a no-op",
			invalidate: []string{"ordersCache"},
			remaining:  []string{"mixed", "products", "users"},
		},
		{
			name:       "no tags",
			invalidate: nil,
			remaining:  []string{"mixed", "products", "users"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newMemBackend()
			store := newTestStore(t, backend, nil)
			ctx := context.Background()
			producer := &countingFetch{value: []byte("v")}

			seed := map[string][]string{
				"products": {"productsCache"},
				"users":    {"usersCache"},
				"mixed":    {"productsCache", "usersCache"},
			}
			for key, tags := range seed {
				if _, err := store.GetOrFetch(ctx, key, tags, producer.fetch); err != nil {
					t.Fatalf("seed %s: %v", key, err)
				}
			}

			if err := store.InvalidateTags(ctx, tt.invalidate...); err != nil {
				t.Fatalf("InvalidateTags failed: %v", err)
			}

			if store.Len() != len(tt.remaining) {
				t.Errorf("expected %d entries, got %d", len(tt.remaining), store.Len())
			}
			for _, key := range tt.remaining {
				if _, ok := store.Tags(key); !ok {
					t.Errorf("expected %s to remain", key)
				}
			}
			if backend.size() != len(tt.remaining) {
				t.Errorf("expected backend to hold %d values, got %d", len(tt.remaining), backend.size())
			}
		})
	}
}

func TestTagStore_InvalidateTags_Idempotent(t *testing.T) {
	store := newTestStore(t, newMemBackend(), nil)
	ctx := context.Background()
	producer := &countingFetch{value: []byte("v")}

	if _, err := store.GetOrFetch(ctx, "products", []string{"productsCache"}, producer.fetch); err != nil {
		t.Fatalf("seed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := store.InvalidateTags(ctx, "productsCache"); err != nil {
			t.Fatalf("InvalidateTags #%d failed: %v", i+1, err)
		}
		if store.Len() != 0 {
			t.Errorf("invalidation #%d: expected empty store, got %d", i+1, store.Len())
		}
		if keys := store.Keys("productsCache"); len(keys) != 0 {
			t.Errorf("invalidation #%d: expected empty tag index, got %v", i+1, keys)
		}
	}
}

func TestTagStore_InvalidateTags_BackendDeleteFailure(t *testing.T) {
	backend := newMemBackend()
	store := newTestStore(t, backend, nil)
	ctx := context.Background()
	producer := &countingFetch{value: []byte("v")}

	if _, err := store.GetOrFetch(ctx, "products", []string{"productsCache"}, producer.fetch); err != nil {
		t.Fatalf("seed: %v", err)
	}

	backend.failDelete.Store(true)
	if err := store.InvalidateTags(ctx, "productsCache"); err != nil {
		t.Fatalf("expected invalidation to succeed despite backend failure, got %v", err)
	}

	if store.Len() != 0 {
		t.Errorf("expected entry removed from the index, got %d entries", store.Len())
	}
	if store.Stats().BackendErrors != 1 {
		t.Errorf("expected 1 backend error, got %d", store.Stats().BackendErrors)
	}

	// the orphaned value must never be served
	if _, err := store.GetOrFetch(ctx, "products", []string{"productsCache"}, producer.fetch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if producer.count() != 2 {
		t.Errorf("expected refetch, got %d calls", producer.count())
	}
}

func TestTagStore_InvalidateDuringFetch(t *testing.T) {
	store := newTestStore(t, newMemBackend(), func(c *Config) { c.WaitTimeout = 0 })
	ctx := context.Background()

	producer := &countingFetch{
		value:   []byte("stale"),
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}

	done := make(chan []byte)
	go func() {
		value, err := store.GetOrFetch(ctx, "list_products", []string{"productsCache"}, producer.fetch)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		done <- value
	}()

	<-producer.started
	if err := store.InvalidateTags(ctx, "productsCache"); err != nil {
		t.Fatalf("InvalidateTags failed: %v", err)
	}
	close(producer.release)

	// the caller that started the fetch still gets its answer
	if value := <-done; string(value) != "stale" {
		t.Errorf("expected in-flight caller to receive stale, got %q", value)
	}

	if store.Len() != 0 {
		t.Errorf("expected fetch started before invalidation not to install, got %d entries", store.Len())
	}
	if keys := store.Keys("productsCache"); len(keys) != 0 {
		t.Errorf("expected empty tag index, got %v", keys)
	}

	fresh := &countingFetch{value: []byte("fresh")}
	value, err := store.GetOrFetch(ctx, "list_products", []string{"productsCache"}, fresh.fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(value) != "fresh" || fresh.count() != 1 {
		t.Errorf("expected a fresh fetch after invalidation, got %q with %d calls", value, fresh.count())
	}
}

func TestTagStore_JoinAfterInvalidationStartsFreshFetch(t *testing.T) {
	store := newTestStore(t, newMemBackend(), func(c *Config) { c.WaitTimeout = 0 })
	ctx := context.Background()

	var calls atomic.Int64
	started := make(chan struct{})
	release := make(chan struct{})
	producer := func(context.Context) ([]byte, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
			return []byte("stale"), nil
		}
		return []byte("fresh"), nil
	}

	staleDone := make(chan []byte)
	go func() {
		value, _ := store.GetOrFetch(ctx, "k", []string{"usersCache"}, producer)
		staleDone <- value
	}()

	<-started
	if err := store.InvalidateTags(ctx, "usersCache"); err != nil {
		t.Fatalf("InvalidateTags failed: %v", err)
	}

	value, err := store.GetOrFetch(ctx, "k", []string{"usersCache"}, producer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(value) != "fresh" {
		t.Errorf("expected caller after invalidation to get fresh, got %q", value)
	}
	if calls.Load() != 2 {
		t.Errorf("expected a second producer call, got %d", calls.Load())
	}

	close(release)
	if value := <-staleDone; string(value) != "stale" {
		t.Errorf("expected first caller to get stale, got %q", value)
	}

	// the late stale result must not replace the fresh entry
	value, err = store.GetOrFetch(ctx, "k", []string{"usersCache"}, producer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(value) != "fresh" {
		t.Errorf("expected cached fresh value, got %q", value)
	}
	if calls.Load() != 2 {
		t.Errorf("expected cached read, got %d producer calls", calls.Load())
	}
}

func TestTagStore_InvalidationIsolatesUnrelatedFlights(t *testing.T) {
	store := newTestStore(t, newMemBackend(), func(c *Config) { c.WaitTimeout = 0 })
	ctx := context.Background()

	producer := &countingFetch{
		value:   []byte("users"),
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		store.GetOrFetch(ctx, "list_users", []string{"usersCache"}, producer.fetch)
	}()

	<-producer.started
	if err := store.InvalidateTags(ctx, "productsCache"); err != nil {
		t.Fatalf("InvalidateTags failed: %v", err)
	}
	close(producer.release)
	<-done

	if _, ok := store.Tags("list_users"); !ok {
		t.Error("expected unrelated fetch to install")
	}
}

func TestTagStore_WaitTimeoutFallsBack(t *testing.T) {
	store := newTestStore(t, newMemBackend(), func(c *Config) {
		c.WaitTimeout = 20 * time.Millisecond
		c.FetchTimeout = 0
	})
	ctx := context.Background()

	var calls atomic.Int64
	hung := make(chan struct{})
	defer close(hung)

	producer := func(context.Context) ([]byte, error) {
		if calls.Add(1) == 1 {
			<-hung
			return []byte("late"), nil
		}
		return []byte("direct"), nil
	}

	value, err := store.GetOrFetch(ctx, "k", []string{"productsCache"}, producer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(value) != "direct" {
		t.Errorf("expected direct computation, got %q", value)
	}
	if store.Stats().Fallbacks != 1 {
		t.Errorf("expected 1 fallback, got %d", store.Stats().Fallbacks)
	}

	// the hung flight was detached, so the next caller starts a new one
	value, err = store.GetOrFetch(ctx, "k", []string{"productsCache"}, producer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(value) != "direct" {
		t.Errorf("expected new flight result, got %q", value)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 producer calls, got %d", calls.Load())
	}
	if store.Len() != 1 {
		t.Errorf("expected new flight to install, got %d entries", store.Len())
	}
}

func TestTagStore_WaitTimeoutFallbackPanic(t *testing.T) {
	store := newTestStore(t, newMemBackend(), func(c *Config) {
		c.WaitTimeout = 20 * time.Millisecond
		c.FetchTimeout = 0
	})

	var calls atomic.Int64
	hung := make(chan struct{})
	defer close(hung)

	_, err := store.GetOrFetch(context.Background(), "k", []string{"productsCache"}, func(context.Context) ([]byte, error) {
		if calls.Add(1) == 1 {
			<-hung
			return []byte("late"), nil
		}
		panic("kaboom")
	})
	if err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Fatalf("expected fallback panic converted to error, got %v", err)
	}
	if store.Stats().Fallbacks != 1 {
		t.Errorf("expected 1 fallback, got %d", store.Stats().Fallbacks)
	}
	if store.Len() != 0 {
		t.Errorf("expected no entries, got %d", store.Len())
	}
}

func TestTagStore_FetchTimeout(t *testing.T) {
	store := newTestStore(t, newMemBackend(), func(c *Config) {
		c.WaitTimeout = 0
		c.FetchTimeout = 20 * time.Millisecond
	})

	_, err := store.GetOrFetch(context.Background(), "k", nil, func(ctx context.Context) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestTagStore_LeaderCancelDoesNotFailWaiters(t *testing.T) {
	store := newTestStore(t, newMemBackend(), func(c *Config) { c.WaitTimeout = 0 })

	producer := &countingFetch{
		value:   []byte("v"),
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error)
	go func() {
		_, err := store.GetOrFetch(leaderCtx, "k", nil, producer.fetch)
		leaderErr <- err
	}()
	<-producer.started

	waiter := make(chan []byte)
	go func() {
		value, _ := store.GetOrFetch(context.Background(), "k", nil, producer.fetch)
		waiter <- value
	}()
	waitFor(t, "waiter to join", func() bool { return store.Stats().Shared == 1 })

	cancel()
	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Errorf("expected leader to see context.Canceled, got %v", err)
	}

	close(producer.release)
	if value := <-waiter; string(value) != "v" {
		t.Errorf("expected waiter to get v, got %q", value)
	}
	if producer.count() != 1 {
		t.Errorf("expected 1 producer call, got %d", producer.count())
	}
}

func TestTagStore_BackendGetFailureFailsOpen(t *testing.T) {
	backend := newMemBackend()
	store := newTestStore(t, backend, nil)
	ctx := context.Background()
	producer := &countingFetch{value: []byte("v")}

	if _, err := store.GetOrFetch(ctx, "k", []string{"productsCache"}, producer.fetch); err != nil {
		t.Fatalf("seed: %v", err)
	}

	backend.failGet.Store(true)
	value, err := store.GetOrFetch(ctx, "k", []string{"productsCache"}, producer.fetch)
	if err != nil {
		t.Fatalf("expected backend failure to be hidden, got %v", err)
	}
	if string(value) != "v" {
		t.Errorf("expected v, got %q", value)
	}
	if producer.count() != 2 {
		t.Errorf("expected refetch on backend failure, got %d calls", producer.count())
	}
	if store.Stats().BackendErrors != 1 {
		t.Errorf("expected 1 backend error, got %d", store.Stats().BackendErrors)
	}
}

func TestTagStore_BackendSetFailureServesUncached(t *testing.T) {
	backend := newMemBackend()
	backend.failSet.Store(true)
	store := newTestStore(t, backend, nil)
	ctx := context.Background()
	producer := &countingFetch{value: []byte("v")}

	for i := 0; i < 2; i++ {
		value, err := store.GetOrFetch(ctx, "k", []string{"productsCache"}, producer.fetch)
		if err != nil {
			t.Fatalf("call %d: unexpected error %v", i+1, err)
		}
		if string(value) != "v" {
			t.Errorf("call %d: expected v, got %q", i+1, value)
		}
	}

	if producer.count() != 2 {
		t.Errorf("expected both calls to fetch, got %d", producer.count())
	}
	if store.Len() != 0 {
		t.Errorf("expected nothing cached, got %d entries", store.Len())
	}
}

func TestTagStore_BackendEvictionReconciles(t *testing.T) {
	backend := newMemBackend()
	store := newTestStore(t, backend, nil)
	ctx := context.Background()
	producer := &countingFetch{value: []byte("v")}

	if _, err := store.GetOrFetch(ctx, "k", []string{"productsCache"}, producer.fetch); err != nil {
		t.Fatalf("seed: %v", err)
	}

	backend.drop()

	if _, err := store.GetOrFetch(ctx, "k", []string{"productsCache"}, producer.fetch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if producer.count() != 2 {
		t.Errorf("expected recompute after backend eviction, got %d calls", producer.count())
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", store.Len())
	}
	if keys := store.Keys("productsCache"); len(keys) != 1 {
		t.Errorf("expected tag index to hold the refetched key, got %v", keys)
	}
}

func TestTagStore_Delete(t *testing.T) {
	backend := newMemBackend()
	store := newTestStore(t, backend, nil)
	ctx := context.Background()
	producer := &countingFetch{value: []byte("v")}

	for _, key := range []string{"a", "b"} {
		if _, err := store.GetOrFetch(ctx, key, []string{"productsCache"}, producer.fetch); err != nil {
			t.Fatalf("seed %s: %v", key, err)
		}
	}

	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "never-cached"); err != nil {
		t.Fatalf("Delete of missing key failed: %v", err)
	}

	if keys := store.Keys("productsCache"); len(keys) != 1 || keys[0] != "b" {
		t.Errorf("expected only b indexed, got %v", keys)
	}
	if backend.size() != 1 {
		t.Errorf("expected backend to hold 1 value, got %d", backend.size())
	}
}

func TestTagStore_Close(t *testing.T) {
	backend := newMemBackend()
	store, err := NewTagStore(DefaultConfig(), backend, testLogger())
	if err != nil {
		t.Fatalf("NewTagStore failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !backend.closed.Load() {
		t.Error("expected backend to be closed")
	}
}

func TestTagStore_ConcurrentIndexConsistency(t *testing.T) {
	store := newTestStore(t, newMemBackend(), nil)
	ctx := context.Background()
	tags := []string{"productsCache", "usersCache", "ordersCache"}

	var wg sync.WaitGroup
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(seed))
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("key-%d", rnd.Intn(20))
				switch rnd.Intn(4) {
				case 0:
					store.InvalidateTags(ctx, tags[rnd.Intn(len(tags))])
				case 1:
					store.Delete(ctx, key)
				default:
					keyTags := []string{tags[rnd.Intn(len(tags))], tags[rnd.Intn(len(tags))]}
					store.GetOrFetch(ctx, key, keyTags, func(context.Context) ([]byte, error) {
						return []byte(key), nil
					})
				}
			}
		}(int64(w))
	}
	wg.Wait()

	store.mu.Lock()
	defer store.mu.Unlock()

	for key, e := range store.entries {
		for _, tag := range e.tags {
			if _, ok := store.tagIndex[tag][key]; !ok {
				t.Errorf("entry %s tagged %s missing from tag index", key, tag)
			}
		}
	}
	for tag, keys := range store.tagIndex {
		if len(keys) == 0 {
			t.Errorf("empty bucket left for tag %s", tag)
		}
		for key := range keys {
			e, ok := store.entries[key]
			if !ok {
				t.Errorf("tag index %s references absent key %s", tag, key)
				continue
			}
			found := false
			for _, entryTag := range e.tags {
				if entryTag == tag {
					found = true
				}
			}
			if !found {
				t.Errorf("tag index %s references %s which does not carry it", tag, key)
			}
		}
	}
	if len(store.flights) != 0 {
		t.Errorf("expected no flights left, got %d", len(store.flights))
	}
}
