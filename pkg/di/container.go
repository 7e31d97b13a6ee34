package di

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-catalog-api/authz"
	"github.com/goliatone/go-catalog-api/cache"
	"github.com/goliatone/go-catalog-api/internal/config"
	"github.com/goliatone/go-catalog-api/internal/httpapi"
	"github.com/goliatone/go-catalog-api/internal/store"
	"github.com/goliatone/go-catalog-api/invalidation"
	"github.com/goliatone/go-catalog-api/repositorycache"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"
)

// Listing operations registered with the key builder.
const (
	OperationListProducts = "list_products"
	OperationListUsers    = "list_users"
)

// Container builds and owns the shared instances of the service: database,
// cache store, key builder, invalidation bus, gate and repositories. Every
// instance is created once in NewContainer and released by Close.
type Container struct {
	config config.Config
	logger zerolog.Logger

	db    *bun.DB
	store *cache.Store
	keys  *cache.KeyBuilder
	bus   *invalidation.Bus
	gate  *authz.Gate
	auth  *authz.JWTAuthenticator

	products *repositorycache.CachedRepository[*store.Product]
	users    *repositorycache.CachedRepository[*store.User]
	api      *httpapi.API
}

// NewContainer opens the database, applies migrations, seeds fixture data if
// configured and wires the cache and repositories. On error everything
// opened so far is released.
func NewContainer(ctx context.Context, cfg config.Config, logger zerolog.Logger) (_ *Container, err error) {
	c := &Container{
		config: cfg,
		logger: logger,
		keys:   cache.NewKeyBuilder(),
		gate:   authz.NewGate(logger),
		auth:   authz.NewJWTAuthenticator(cfg.JWT()),
	}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	c.db, err = store.Open(ctx, cfg.Store(), logger)
	if err != nil {
		return nil, err
	}
	if err = store.Migrate(ctx, c.db); err != nil {
		return nil, err
	}
	if cfg.Seed {
		seeded, seedErr := store.Seed(ctx, c.db, store.DefaultSeedConfig())
		if seedErr != nil {
			return nil, seedErr
		}
		if !seeded.Skipped {
			logger.Info().
				Int("customers", len(seeded.Customers)).
				Int("products", seeded.Products).
				Int("users", seeded.Users).
				Msg("database seeded")
		}
	}

	var service cache.CacheService
	if cfg.CacheEnabled {
		c.store, err = cache.NewCacheService(cfg.Cache(), logger)
		if err != nil {
			return nil, fmt.Errorf("di: cache: %w", err)
		}
		service = c.store
		c.bus = invalidation.NewBus(c.store, invalidation.WithLogger(logger))
	} else {
		logger.Warn().Msg("listing cache disabled")
		c.bus = invalidation.NewBus(nil, invalidation.WithLogger(logger))
	}

	c.products, err = NewCachedRepository[*store.Product](c, service, store.NewProductRepository(c.db),
		repositorycache.Options[*store.Product]{
			Operation:    OperationListProducts,
			ResourceType: invalidation.Catalog,
			Order:        "created_at ASC, id ASC",
		})
	if err != nil {
		return nil, err
	}

	c.users, err = NewCachedRepository[*store.User](c, service, store.NewUserRepository(c.db),
		repositorycache.Options[*store.User]{
			Operation:    OperationListUsers,
			ResourceType: invalidation.OwnerScoped,
			OwnerColumn:  "customer_id",
			OwnerOf:      store.UserOwner,
			AssignOwner:  store.AssignUserOwner,
			Validate:     store.ValidateUser,
			Order:        "created_at ASC, id ASC",
		})
	if err != nil {
		return nil, err
	}

	c.api, err = httpapi.New(httpapi.Deps{
		Products: c.products,
		Users:    c.users,
		Gate:     c.gate,
		Auth:     c.auth,
		Pages:    cfg.Pagination(),
		Health:   c.Health,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	return c, nil
}

// NewCachedRepository decorates base with the container's key builder and
// invalidation bus. A nil service disables caching for the repository.
//
// Since Go methods cannot have type parameters, this is provided as a package-level function.
func NewCachedRepository[T any](c *Container, service cache.CacheService, base repositorycache.Source[T], opts repositorycache.Options[T]) (*repositorycache.CachedRepository[T], error) {
	if opts.Logger == nil {
		logger := c.logger
		opts.Logger = &logger
	}
	repo, err := repositorycache.New[T](base, service, c.keys, c.bus, opts)
	if err != nil {
		return nil, fmt.Errorf("di: %w", err)
	}
	return repo, nil
}

// Config returns the configuration the container was built with.
func (c *Container) Config() config.Config {
	return c.config
}

// DB returns the database handle.
func (c *Container) DB() *bun.DB {
	return c.db
}

// CacheStore returns the listing cache, or nil when caching is disabled.
func (c *Container) CacheStore() *cache.Store {
	return c.store
}

// KeyBuilder returns the shared key builder.
func (c *Container) KeyBuilder() *cache.KeyBuilder {
	return c.keys
}

// Bus returns the invalidation bus.
func (c *Container) Bus() *invalidation.Bus {
	return c.bus
}

// Gate returns the authorization gate.
func (c *Container) Gate() *authz.Gate {
	return c.gate
}

// Authenticator returns the bearer token authenticator.
func (c *Container) Authenticator() *authz.JWTAuthenticator {
	return c.auth
}

// Products returns the cached product repository.
func (c *Container) Products() *repositorycache.CachedRepository[*store.Product] {
	return c.products
}

// Users returns the cached user repository.
func (c *Container) Users() *repositorycache.CachedRepository[*store.User] {
	return c.users
}

// API returns the HTTP API.
func (c *Container) API() *httpapi.API {
	return c.api
}

// Health pings the database.
func (c *Container) Health(ctx context.Context) error {
	if c.db == nil {
		return errors.New("di: database not open")
	}
	return c.db.PingContext(ctx)
}

// Close releases the cache and the database.
func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
		c.store = nil
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		c.db = nil
	}
	return errors.Join(errs...)
}
