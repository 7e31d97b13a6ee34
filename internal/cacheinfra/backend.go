package cacheinfra

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/viccon/sturdyc"
)

// Backend stores the bytes of present cache entries. The TagStore owns the
// entry metadata; a Backend only maps storage keys to values.
//
// Contract:
//   - Get returns (nil, false, nil) on a miss. A value the backend dropped on
//     its own (capacity, TTL) is reported as a miss.
//   - Delete is idempotent.
//   - Implementations must be safe for concurrent use.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// NewBackend builds the backend selected by cfg.Backend.
func NewBackend(cfg Config) (Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedisBackend(client, cfg.Redis.Prefix, cfg.TTL), nil
	default:
		return NewSturdycBackend(cfg)
	}
}

// sturdycBackend keeps values in an in-process sturdyc client.
type sturdycBackend struct {
	client *sturdyc.Client[[]byte]
}

// NewSturdycBackend creates the in-memory backend.
//
// The constructor translates Config parameters to sturdyc initialization:
// - Capacity, NumShards, TTL, EvictionPercentage are passed to sturdyc.New()
// - Other options are applied via ToSturdycOptions()
func NewSturdycBackend(cfg Config) (*sturdycBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[[]byte](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &sturdycBackend{client: client}, nil
}

func (b *sturdycBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, ok := b.client.Get(key)
	return value, ok, nil
}

func (b *sturdycBackend) Set(_ context.Context, key string, value []byte) error {
	b.client.Set(key, value)
	return nil
}

func (b *sturdycBackend) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		b.client.Delete(key)
	}
	return nil
}

func (b *sturdycBackend) Close() error {
	return nil
}

// Size reports how many values the client currently holds.
func (b *sturdycBackend) Size() int {
	return b.client.Size()
}
