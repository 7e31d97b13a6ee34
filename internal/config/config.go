// Package config loads the service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-catalog-api/authz"
	"github.com/goliatone/go-catalog-api/cache"
	"github.com/goliatone/go-catalog-api/internal/store"
	"github.com/goliatone/go-catalog-api/pagination"
	"github.com/goliatone/go-catalog-api/pkg/logging"
)

// Config is the complete service configuration.
type Config struct {
	HTTPAddr        string        `env:"CATALOG_HTTP_ADDR"        envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"CATALOG_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	LogLevel  string `env:"CATALOG_LOG_LEVEL"  envDefault:"info"`
	LogPretty bool   `env:"CATALOG_LOG_PRETTY"`

	DBDriver string `env:"CATALOG_DB_DRIVER" envDefault:"sqlite"`
	DBDSN    string `env:"CATALOG_DB_DSN"`
	DBDebug  bool   `env:"CATALOG_DB_DEBUG"`
	Seed     bool   `env:"CATALOG_SEED"      envDefault:"true"`

	JWTSecret   string        `env:"CATALOG_JWT_SECRET"`
	JWTIssuer   string        `env:"CATALOG_JWT_ISSUER" envDefault:"catalog-api"`
	JWTTokenTTL time.Duration `env:"CATALOG_JWT_TTL"    envDefault:"1h"`

	PageDefaultLimit int `env:"CATALOG_PAGE_DEFAULT_LIMIT" envDefault:"50"`
	// Zero leaves the page size unbounded.
	PageMaxLimit int `env:"CATALOG_PAGE_MAX_LIMIT"`

	CacheEnabled            bool          `env:"CATALOG_CACHE_ENABLED"             envDefault:"true"`
	CacheBackend            string        `env:"CATALOG_CACHE_BACKEND"             envDefault:"memory"`
	CacheCapacity           int           `env:"CATALOG_CACHE_CAPACITY"            envDefault:"10000"`
	CacheNumShards          int           `env:"CATALOG_CACHE_SHARDS"              envDefault:"256"`
	CacheTTL                time.Duration `env:"CATALOG_CACHE_TTL"                 envDefault:"24h"`
	CacheEvictionPercentage int           `env:"CATALOG_CACHE_EVICTION_PERCENTAGE" envDefault:"10"`
	CacheWaitTimeout        time.Duration `env:"CATALOG_CACHE_WAIT_TIMEOUT"        envDefault:"5s"`
	CacheFetchTimeout       time.Duration `env:"CATALOG_CACHE_FETCH_TIMEOUT"       envDefault:"10s"`

	RedisAddr     string `env:"CATALOG_REDIS_ADDR"`
	RedisPassword string `env:"CATALOG_REDIS_PASSWORD"`
	RedisDB       int    `env:"CATALOG_REDIS_DB"`
	RedisPrefix   string `env:"CATALOG_REDIS_PREFIX"`
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads the configuration from environ instead of the process
// environment.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that cannot be defaulted.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.HTTPAddr, validation.Required),
		validation.Field(&c.JWTSecret,
			validation.Required.Error("is required (set CATALOG_JWT_SECRET)"),
			validation.Length(16, 0),
		),
		validation.Field(&c.DBDriver, validation.In(store.DriverSQLite, store.DriverPostgres)),
		validation.Field(&c.DBDSN, validation.When(c.DBDriver == store.DriverPostgres, validation.Required)),
		validation.Field(&c.PageDefaultLimit, validation.Min(1)),
		validation.Field(&c.PageMaxLimit, validation.Min(0)),
	)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.CacheEnabled {
		if err := c.Cache().Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}
	return nil
}

// Cache returns the cache settings.
func (c Config) Cache() cache.Config {
	cfg := cache.DefaultConfig()
	cfg.Backend = c.CacheBackend
	cfg.Capacity = c.CacheCapacity
	cfg.NumShards = c.CacheNumShards
	cfg.TTL = c.CacheTTL
	cfg.EvictionPercentage = c.CacheEvictionPercentage
	cfg.WaitTimeout = c.CacheWaitTimeout
	cfg.FetchTimeout = c.CacheFetchTimeout
	if c.CacheBackend == cache.BackendRedis {
		cfg.Redis = &cache.RedisConfig{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
			Prefix:   c.RedisPrefix,
		}
	}
	return cfg
}

// Store returns the database settings.
func (c Config) Store() store.Config {
	return store.Config{
		Driver: c.DBDriver,
		DSN:    c.DBDSN,
		Debug:  c.DBDebug,
	}
}

// JWT returns the token settings.
func (c Config) JWT() authz.JWTConfig {
	return authz.JWTConfig{
		Secret:   []byte(c.JWTSecret),
		Issuer:   c.JWTIssuer,
		TokenTTL: c.JWTTokenTTL,
	}
}

// Pagination returns the page parsing settings.
func (c Config) Pagination() pagination.Config {
	cfg := pagination.DefaultConfig()
	cfg.DefaultLimit = c.PageDefaultLimit
	cfg.MaxLimit = c.PageMaxLimit
	return cfg
}

// Logging returns the logger settings.
func (c Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.LogLevel
	cfg.Pretty = c.LogPretty
	return cfg
}
