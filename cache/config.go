package cache

import (
	"time"

	"github.com/goliatone/go-catalog-api/internal/cacheinfra"
	"github.com/rs/zerolog"
)

// Backend names accepted by Config.Backend.
const (
	BackendMemory = cacheinfra.BackendMemory
	BackendRedis  = cacheinfra.BackendRedis
)

// Config exposes cache configuration options for consumers of the cache package.
type Config struct {
	Backend            string
	Capacity           int
	NumShards          int
	TTL                time.Duration
	EvictionPercentage int
	EvictionInterval   time.Duration
	WaitTimeout        time.Duration
	FetchTimeout       time.Duration
	Redis              *RedisConfig
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return convertFromInternal(cacheinfra.DefaultConfig())
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return c.toInternal().Validate()
}

// NewCacheService constructs the default cache service implementation using the provided configuration.
func NewCacheService(cfg Config, logger zerolog.Logger) (*Store, error) {
	internal := cfg.toInternal()
	backend, err := cacheinfra.NewBackend(internal)
	if err != nil {
		return nil, err
	}
	return cacheinfra.NewTagStore(internal, backend, logger)
}

func (c Config) toInternal() cacheinfra.Config {
	var redis *cacheinfra.RedisConfig
	if c.Redis != nil {
		redis = &cacheinfra.RedisConfig{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
			Prefix:   c.Redis.Prefix,
		}
	}

	return cacheinfra.Config{
		Backend:            c.Backend,
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		TTL:                c.TTL,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
		WaitTimeout:        c.WaitTimeout,
		FetchTimeout:       c.FetchTimeout,
		Redis:              redis,
	}
}

func convertFromInternal(cfg cacheinfra.Config) Config {
	var redis *RedisConfig
	if cfg.Redis != nil {
		redis = &RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		}
	}

	return Config{
		Backend:            cfg.Backend,
		Capacity:           cfg.Capacity,
		NumShards:          cfg.NumShards,
		TTL:                cfg.TTL,
		EvictionPercentage: cfg.EvictionPercentage,
		EvictionInterval:   cfg.EvictionInterval,
		WaitTimeout:        cfg.WaitTimeout,
		FetchTimeout:       cfg.FetchTimeout,
		Redis:              redis,
	}
}
