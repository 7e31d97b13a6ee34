package cacheinfra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "catalog-cache"

// redisBackend keeps values in redis under a per-process namespace so cache
// state never outlives the process that wrote it.
type redisBackend struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

// NewRedisBackend wraps client. Every key is written under
// "<prefix>:<instance id>:" where the instance id is fresh per call.
// The backend owns client and closes it on Close.
func NewRedisBackend(client *redis.Client, prefix string, ttl time.Duration) *redisBackend {
	if client == nil {
		panic("redis client cannot be nil")
	}
	prefix = strings.Trim(prefix, ":")
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &redisBackend{
		client:    client,
		namespace: prefix + ":" + uuid.NewString() + ":",
		ttl:       ttl,
	}
}

func (b *redisBackend) key(key string) string {
	return b.namespace + key
}

func (b *redisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := b.client.Get(ctx, b.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return data, true, nil
}

func (b *redisBackend) Set(ctx context.Context, key string, value []byte) error {
	if err := b.client.Set(ctx, b.key(key), value, b.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (b *redisBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = b.key(key)
	}
	if err := b.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (b *redisBackend) Close() error {
	return b.client.Close()
}
