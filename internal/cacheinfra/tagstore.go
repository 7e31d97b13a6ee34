package cacheinfra

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
)

// TextCodeBackendUnavailable marks errors raised by a failing Backend.
const TextCodeBackendUnavailable = "CACHE_BACKEND_UNAVAILABLE"

var (
	// ErrNilFetchFn is returned when GetOrFetch is called without a producer.
	ErrNilFetchFn = errors.New("cacheinfra: fetch function cannot be nil")

	// ErrNilBackend is returned when a TagStore is built without a backend.
	ErrNilBackend = errors.New("cacheinfra: backend cannot be nil")
)

// entry is the metadata of a present key. The value itself lives in the
// backend under storageKey(key, token).
type entry struct {
	token string
	tags  []string
}

// flight is one in-progress fetch for a key. Every field except done is
// guarded by TagStore.mu until done is closed; val and err are read-only
// afterwards.
type flight struct {
	done      chan struct{}
	val       []byte
	err       error
	tags      []string
	gens      map[string]uint64
	abandoned bool
}

func (f *flight) intersects(tags []string) bool {
	for _, t := range tags {
		if _, ok := f.gens[t]; ok {
			return true
		}
	}
	return false
}

// Stats holds running counters for a TagStore.
type Stats struct {
	Hits          int64
	Misses        int64
	Shared        int64
	Discards      int64
	Fallbacks     int64
	BackendErrors int64
}

type counters struct {
	hits          *xsync.Counter
	misses        *xsync.Counter
	shared        *xsync.Counter
	discards      *xsync.Counter
	fallbacks     *xsync.Counter
	backendErrors *xsync.Counter
}

func newCounters() counters {
	return counters{
		hits:          xsync.NewCounter(),
		misses:        xsync.NewCounter(),
		shared:        xsync.NewCounter(),
		discards:      xsync.NewCounter(),
		fallbacks:     xsync.NewCounter(),
		backendErrors: xsync.NewCounter(),
	}
}

// TagStore is a read-through cache with a reverse tag index.
//
// A key is absent, computing (a flight exists) or present (an entry exists).
// Every tag carries a generation counter. A flight snapshots the generations
// of its tags when it starts and installs its result only if none of them
// advanced, so an invalidation always wins over a fetch that started before
// it. Entries, tag index, generations and flights are guarded by one mutex;
// backend I/O happens outside it.
type TagStore struct {
	mu          sync.Mutex
	entries     map[string]*entry
	tagIndex    map[string]map[string]struct{}
	generations map[string]uint64
	flights     map[string]*flight

	backend Backend
	config  Config
	logger  zerolog.Logger
	stats   counters
}

// NewTagStore creates a store on top of backend.
func NewTagStore(cfg Config, backend Backend, logger zerolog.Logger) (*TagStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if backend == nil {
		return nil, ErrNilBackend
	}

	return &TagStore{
		entries:     make(map[string]*entry),
		tagIndex:    make(map[string]map[string]struct{}),
		generations: make(map[string]uint64),
		flights:     make(map[string]*flight),
		backend:     backend,
		config:      cfg,
		logger:      logger.With().Str("component", "tagstore").Logger(),
		stats:       newCounters(),
	}, nil
}

// GetOrFetch returns the value for key. On a miss fetchFn runs once for all
// concurrent callers of the key and its result is stored tagged with tags.
// Errors from fetchFn are returned unchanged and never cached.
func (s *TagStore) GetOrFetch(ctx context.Context, key string, tags []string, fetchFn func(context.Context) ([]byte, error)) ([]byte, error) {
	if fetchFn == nil {
		return nil, ErrNilFetchFn
	}
	tags = normalizeTags(tags)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s.mu.Lock()
		if e, ok := s.entries[key]; ok {
			s.mu.Unlock()

			value, found, err := s.backend.Get(ctx, storageKey(key, e.token))
			if err == nil && found {
				s.stats.hits.Inc()
				CacheHits.Inc()
				return value, nil
			}
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				s.backendFailed("get", key, err)
			}
			// the backend lost the value: drop the entry and fetch again
			s.evict(key, e)
			continue
		}

		f, leader := s.flights[key], false
		if f == nil {
			f = s.startFlightLocked(key, tags)
			leader = true
		}
		s.mu.Unlock()

		if leader {
			s.stats.misses.Inc()
			CacheMisses.Inc()
			go s.run(ctx, key, f, fetchFn)
		} else {
			s.stats.shared.Inc()
			CacheShared.Inc()
		}

		return s.wait(ctx, key, f, fetchFn)
	}
}

// InvalidateTags removes every entry tagged with any of tags and prevents
// in-flight fetches for those tags from installing their results.
// Invalidating an unknown tag is a no-op for the stored entries.
func (s *TagStore) InvalidateTags(ctx context.Context, tags ...string) error {
	tags = normalizeTags(tags)
	if len(tags) == 0 {
		return nil
	}

	var stale []string

	s.mu.Lock()
	for _, tag := range tags {
		s.generations[tag]++
		for key := range s.tagIndex[tag] {
			e := s.entries[key]
			s.removeLocked(key, e)
			stale = append(stale, storageKey(key, e.token))
		}
	}
	for key, f := range s.flights {
		if f.intersects(tags) {
			// later callers must not join a fetch that started before now
			delete(s.flights, key)
		}
	}
	s.mu.Unlock()

	for _, tag := range tags {
		CacheInvalidations.WithLabelValues(tag).Inc()
	}

	s.logger.Debug().
		Strs("tags", tags).
		Int("evicted", len(stale)).
		Msg("cache tags invalidated")

	s.deleteValues(ctx, stale...)
	return nil
}

// Delete evicts a single key. An in-flight fetch for key will not install.
func (s *TagStore) Delete(ctx context.Context, key string) error {
	var stale string

	s.mu.Lock()
	if e, ok := s.entries[key]; ok {
		s.removeLocked(key, e)
		stale = storageKey(key, e.token)
	}
	if f, ok := s.flights[key]; ok {
		f.abandoned = true
		delete(s.flights, key)
	}
	s.mu.Unlock()

	if stale != "" {
		s.deleteValues(ctx, stale)
	}
	return nil
}

// Len returns the number of present entries.
func (s *TagStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Keys returns the sorted keys currently tagged with tag.
func (s *TagStore) Keys(tag string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.tagIndex[tag]))
	for key := range s.tagIndex[tag] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Tags returns the tags of a present key.
func (s *TagStore) Tags(key string) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return append([]string(nil), e.tags...), true
}

// Stats returns a snapshot of the store counters.
func (s *TagStore) Stats() Stats {
	return Stats{
		Hits:          s.stats.hits.Value(),
		Misses:        s.stats.misses.Value(),
		Shared:        s.stats.shared.Value(),
		Discards:      s.stats.discards.Value(),
		Fallbacks:     s.stats.fallbacks.Value(),
		BackendErrors: s.stats.backendErrors.Value(),
	}
}

// Close releases the backend. The store must not be used afterwards.
func (s *TagStore) Close() error {
	s.mu.Lock()
	CacheEntries.Sub(float64(len(s.entries)))
	s.entries = make(map[string]*entry)
	s.tagIndex = make(map[string]map[string]struct{})
	s.mu.Unlock()

	return s.backend.Close()
}

func (s *TagStore) startFlightLocked(key string, tags []string) *flight {
	gens := make(map[string]uint64, len(tags))
	for _, tag := range tags {
		gens[tag] = s.generations[tag]
	}
	f := &flight{
		done: make(chan struct{}),
		tags: tags,
		gens: gens,
	}
	s.flights[key] = f
	return f
}

// run executes the producer detached from the leader's cancellation so the
// other waiters still get a result if the leader goes away.
func (s *TagStore) run(parent context.Context, key string, f *flight, fetchFn func(context.Context) ([]byte, error)) {
	ctx := context.WithoutCancel(parent)
	if s.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.FetchTimeout)
		defer cancel()
	}

	value, err := s.call(ctx, fetchFn)
	if err != nil {
		s.mu.Lock()
		s.finishLocked(key, f, nil, err)
		s.mu.Unlock()
		return
	}

	s.install(context.WithoutCancel(parent), key, f, value)
}

func (s *TagStore) call(ctx context.Context, fetchFn func(context.Context) ([]byte, error)) (value []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cacheinfra: fetch panicked: %v", r)
		}
	}()
	return fetchFn(ctx)
}

func (s *TagStore) install(ctx context.Context, key string, f *flight, value []byte) {
	token := uuid.NewString()
	skey := storageKey(key, token)

	if err := s.backend.Set(ctx, skey, value); err != nil {
		// fail open: serve the value uncached
		s.backendFailed("set", key, err)
		s.mu.Lock()
		s.finishLocked(key, f, value, nil)
		s.mu.Unlock()
		return
	}

	var replaced string
	installed := false

	s.mu.Lock()
	if !f.abandoned && s.validLocked(f) {
		if old, ok := s.entries[key]; ok {
			s.removeLocked(key, old)
			replaced = storageKey(key, old.token)
		}
		s.addLocked(key, &entry{token: token, tags: f.tags})
		installed = true
	}
	s.finishLocked(key, f, value, nil)
	s.mu.Unlock()

	if !installed {
		s.stats.discards.Inc()
		CacheDiscards.Inc()
		s.logger.Debug().Str("key", key).Msg("fetch result discarded after invalidation")
		s.deleteValues(ctx, skey)
	}
	if replaced != "" {
		s.deleteValues(ctx, replaced)
	}
}

func (s *TagStore) wait(ctx context.Context, key string, f *flight, fetchFn func(context.Context) ([]byte, error)) ([]byte, error) {
	var timeout <-chan time.Time
	if s.config.WaitTimeout > 0 {
		timer := time.NewTimer(s.config.WaitTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeout:
		s.abandon(key, f)
		s.stats.fallbacks.Inc()
		CacheFallbacks.Inc()
		s.logger.Warn().
			Str("key", key).
			Dur("wait_timeout", s.config.WaitTimeout).
			Msg("in-flight fetch timed out, computing directly")
		return s.call(ctx, fetchFn)
	}
}

// abandon detaches f so the next caller starts a fresh fetch. f's result is
// still delivered to callers already waiting on it but is never installed.
func (s *TagStore) abandon(key string, f *flight) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f.abandoned = true
	if s.flights[key] == f {
		delete(s.flights, key)
	}
}

func (s *TagStore) evict(key string, e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entries[key] == e {
		s.removeLocked(key, e)
	}
}

func (s *TagStore) validLocked(f *flight) bool {
	for tag, gen := range f.gens {
		if s.generations[tag] != gen {
			return false
		}
	}
	return true
}

func (s *TagStore) finishLocked(key string, f *flight, value []byte, err error) {
	f.val, f.err = value, err
	if s.flights[key] == f {
		delete(s.flights, key)
	}
	close(f.done)
}

func (s *TagStore) addLocked(key string, e *entry) {
	s.entries[key] = e
	for _, tag := range e.tags {
		bucket, ok := s.tagIndex[tag]
		if !ok {
			bucket = make(map[string]struct{})
			s.tagIndex[tag] = bucket
		}
		bucket[key] = struct{}{}
	}
	CacheEntries.Inc()
}

func (s *TagStore) removeLocked(key string, e *entry) {
	delete(s.entries, key)
	for _, tag := range e.tags {
		bucket := s.tagIndex[tag]
		delete(bucket, key)
		if len(bucket) == 0 {
			delete(s.tagIndex, tag)
		}
	}
	CacheEntries.Dec()
}

func (s *TagStore) deleteValues(ctx context.Context, keys ...string) {
	if err := s.backend.Delete(ctx, keys...); err != nil {
		// entries are already gone from the index, the values are unreachable
		s.backendFailed("delete", "", err)
	}
}

func (s *TagStore) backendFailed(operation, key string, err error) {
	s.stats.backendErrors.Inc()
	CacheBackendErrors.WithLabelValues(operation).Inc()

	wrapped := goerrors.Wrap(err, goerrors.CategoryExternal, "cache backend unavailable").
		WithTextCode(TextCodeBackendUnavailable)

	s.logger.Warn().
		Err(wrapped).
		Str("operation", operation).
		Str("key", key).
		Msg("cache backend error, failing open")
}

func storageKey(key, token string) string {
	return key + "#" + token
}

// normalizeTags returns the sorted, de-duplicated, non-empty tags.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
