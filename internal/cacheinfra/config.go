package cacheinfra

import (
	"time"

	"github.com/viccon/sturdyc"
)

// Backend names accepted by Config.Backend.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds the configuration for the tag store and its value backend.
type Config struct {
	// Backend selects where cached bytes live: "memory" (sturdyc) or "redis".
	Backend string

	// Capacity defines the maximum number of entries the in-memory backend
	// keeps before evicting. Must be greater than 0.
	Capacity int

	// NumShards determines the number of sturdyc shards.
	// Must be greater than 0. Default: 256
	NumShards int

	// TTL bounds how long the backend retains a value. Entries have no expiry
	// of their own; a value dropped by the backend is treated as evicted and
	// recomputed on the next read. Must be greater than 0.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when the in-memory backend reaches its capacity. Must be between 1-100.
	EvictionPercentage int

	// EvictionInterval sets how often sturdyc sweeps for expired entries.
	// Zero value uses the default interval.
	EvictionInterval time.Duration

	// WaitTimeout bounds how long a caller waits on another caller's
	// in-flight fetch before computing directly. Zero disables the bound.
	WaitTimeout time.Duration

	// FetchTimeout bounds a single producer call. Zero disables the bound.
	FetchTimeout time.Duration

	// Redis configures the redis backend. Required when Backend is "redis".
	Redis *RedisConfig
}

// RedisConfig configures the redis value backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key written by this process.
	Prefix string
}

// DefaultConfig returns a Config with sensible defaults for most use cases.
func DefaultConfig() Config {
	return Config{
		Backend:            BackendMemory,
		Capacity:           10000,
		NumShards:          256,
		TTL:                24 * time.Hour,
		EvictionPercentage: 10,
		EvictionInterval:   0, // Use default
		WaitTimeout:        5 * time.Second,
		FetchTimeout:       10 * time.Second,
	}
}

// ToSturdycOptions converts the Config to sturdyc.Option slice.
// Capacity, NumShards, TTL and EvictionPercentage are passed directly
// to sturdyc.New() and are not included in the options.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

// Validate checks if the configuration values are valid.
// Returns an error if any configuration parameter is invalid.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory, "":
	case BackendRedis:
		if c.Redis == nil || c.Redis.Addr == "" {
			return &ConfigError{Field: "Redis.Addr", Message: "is required for the redis backend"}
		}
	default:
		return &ConfigError{Field: "Backend", Message: "must be one of memory, redis"}
	}

	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}

	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}

	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}

	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}

	if c.WaitTimeout < 0 {
		return &ConfigError{Field: "WaitTimeout", Message: "must be non-negative"}
	}

	if c.FetchTimeout < 0 {
		return &ConfigError{Field: "FetchTimeout", Message: "must be non-negative"}
	}

	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}
