package repositorycache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"

	"github.com/goliatone/go-catalog-api/authz"
	"github.com/goliatone/go-catalog-api/cache"
	"github.com/goliatone/go-catalog-api/invalidation"
	"github.com/goliatone/go-catalog-api/pagination"
	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"
)

// TextCodeNotFound marks errors for missing or out-of-scope records.
const TextCodeNotFound = "NOT_FOUND"

// Source is the subset of repository.Repository[T] the decorator needs.
type Source[T any] interface {
	List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error)
	GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (T, error)
	Create(ctx context.Context, record T, criteria ...repository.InsertCriteria) (T, error)
	Update(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error)
	Delete(ctx context.Context, record T) error
}

var _ Source[any] = (repository.Repository[any])(nil)

// Page is one cached page of a listing.
type Page[T any] struct {
	Items []T `msgpack:"items"`
	Total int `msgpack:"total"`
	Page  int `msgpack:"page"`
	Limit int `msgpack:"limit"`
}

// Options configures a CachedRepository.
type Options[T any] struct {
	// Operation names the listing in cache keys.
	// Default: "list_" + snake_case type name
	Operation string

	// ResourceType selects the invalidation tags and the required scope kind.
	ResourceType invalidation.ResourceType

	// OwnerColumn is the column filtered by the owner id of a scope.
	// Required for owner scoped resources.
	OwnerColumn string

	// OwnerOf returns the owner of a record. Required for owner scoped resources.
	OwnerOf func(T) uuid.UUID

	// AssignOwner sets the owner of a record before it is persisted.
	AssignOwner func(T, uuid.UUID) T

	// Validate runs before Create and Update.
	Validate func(T) error

	// Order is the ORDER BY expression for listings.
	// Default: "id ASC"
	Order string

	Logger *zerolog.Logger
}

// CachedRepository decorates a Source with scoped, tag-invalidated listing
// caches. Listings are read through the cache; single records are read from
// the source; mutations persist first and then invalidate every listing of
// the resource type.
type CachedRepository[T any] struct {
	base   Source[T]
	cache  cache.CacheService
	keys   *cache.KeyBuilder
	bus    *invalidation.Bus
	opts   Options[T]
	name   string
	logger zerolog.Logger
}

// New creates a new CachedRepository. A nil cacheService disables caching.
func New[T any](base Source[T], cacheService cache.CacheService, keys *cache.KeyBuilder, bus *invalidation.Bus, opts Options[T]) (*CachedRepository[T], error) {
	if base == nil {
		return nil, errors.New("repositorycache: base source cannot be nil")
	}
	if bus == nil {
		return nil, errors.New("repositorycache: invalidation bus cannot be nil")
	}

	name := typeName[T]()
	if opts.Operation == "" {
		opts.Operation = "list_" + name
	}
	if opts.Order == "" {
		opts.Order = "id ASC"
	}

	switch opts.ResourceType {
	case invalidation.Catalog:
	case invalidation.OwnerScoped:
		if opts.OwnerColumn == "" || opts.OwnerOf == nil {
			return nil, fmt.Errorf("repositorycache: %s is owner scoped but has no owner column or accessor", name)
		}
	default:
		return nil, fmt.Errorf("repositorycache: %w: %s", invalidation.ErrUnknownResourceType, opts.ResourceType)
	}

	if keys == nil {
		keys = cache.NewKeyBuilder()
	}
	params := []string{"page", "limit"}
	if opts.ResourceType == invalidation.OwnerScoped {
		params = []string{"owner", "page", "limit"}
	}
	if err := keys.Register(opts.Operation, params...); err != nil {
		return nil, err
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &CachedRepository[T]{
		base:   base,
		cache:  cacheService,
		keys:   keys,
		bus:    bus,
		opts:   opts,
		name:   name,
		logger: logger.With().Str("component", "repositorycache").Str("resource", name).Logger(),
	}, nil
}

// ListPage returns one page of records visible in scope.
func (c *CachedRepository[T]) ListPage(ctx context.Context, scope authz.Scope, params pagination.Params) (Page[T], error) {
	if err := c.checkScope(scope); err != nil {
		return Page[T]{}, err
	}

	fetch := func(ctx context.Context) (Page[T], error) {
		return c.fetchPage(ctx, scope, params)
	}

	if c.cache == nil {
		return fetch(ctx)
	}

	key, err := c.listKey(scope, params)
	if err != nil {
		return Page[T]{}, err
	}

	tags := mergeTags(c.bus.Tags(c.opts.ResourceType), cacheTagsFromContext(ctx))
	return cache.GetOrFetch(ctx, c.cache, key, tags, fetch)
}

// Get returns the record with id. Records outside scope are reported as not
// found.
func (c *CachedRepository[T]) Get(ctx context.Context, scope authz.Scope, id string) (T, error) {
	var zero T
	if err := c.checkScope(scope); err != nil {
		return zero, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return zero, c.notFound(id)
	}

	record, err := c.base.GetByID(ctx, parsed.String())
	if err != nil {
		if isNotFound(err) {
			return zero, c.notFound(id)
		}
		return zero, err
	}

	if owner, ok := scope.Owner(); ok && c.opts.OwnerOf(record) != owner {
		return zero, c.notFound(id)
	}
	return record, nil
}

// Create persists record in scope and invalidates the listings.
func (c *CachedRepository[T]) Create(ctx context.Context, scope authz.Scope, record T) (T, error) {
	var zero T
	if err := c.checkScope(scope); err != nil {
		return zero, err
	}

	record = c.assignOwner(scope, record)
	if err := c.validate(record); err != nil {
		return zero, err
	}

	created, err := c.base.Create(ctx, record)
	if err != nil {
		return zero, err
	}
	return created, c.mutated(ctx, "create")
}

// Update persists changes to an existing record in scope and invalidates the
// listings. The record must already exist in scope.
func (c *CachedRepository[T]) Update(ctx context.Context, scope authz.Scope, record T) (T, error) {
	var zero T

	id, err := c.extractID(record)
	if err != nil {
		return zero, goerrors.Wrap(err, goerrors.CategoryBadInput, "record has no id")
	}
	if _, err := c.Get(ctx, scope, id); err != nil {
		return zero, err
	}

	record = c.assignOwner(scope, record)
	if err := c.validate(record); err != nil {
		return zero, err
	}

	updated, err := c.base.Update(ctx, record)
	if err != nil {
		return zero, err
	}
	return updated, c.mutated(ctx, "update")
}

// Delete removes the record with id from scope and invalidates the listings.
func (c *CachedRepository[T]) Delete(ctx context.Context, scope authz.Scope, id string) error {
	existing, err := c.Get(ctx, scope, id)
	if err != nil {
		return err
	}

	if err := c.base.Delete(ctx, existing); err != nil {
		return err
	}
	return c.mutated(ctx, "delete")
}

// Operation returns the cache key namespace of the listing.
func (c *CachedRepository[T]) Operation() string {
	return c.opts.Operation
}

func (c *CachedRepository[T]) listKey(scope authz.Scope, params pagination.Params) (string, error) {
	keyParams := []cache.Param{
		cache.P("page", params.Page),
		cache.P("limit", params.Limit),
	}
	if owner, ok := scope.Owner(); ok {
		keyParams = append(keyParams, cache.P("owner", owner))
	}
	return c.keys.Build(c.opts.Operation, keyParams...)
}

func (c *CachedRepository[T]) fetchPage(ctx context.Context, scope authz.Scope, params pagination.Params) (Page[T], error) {
	criteria := []repository.SelectCriteria{
		func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr(c.opts.Order).Limit(params.Limit).Offset(params.Offset())
		},
	}
	if owner, ok := scope.Owner(); ok {
		column := c.opts.OwnerColumn
		criteria = append(criteria, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.? = ?", bun.Ident(column), owner)
		})
	}

	records, total, err := c.base.List(ctx, criteria...)
	if err != nil {
		return Page[T]{}, err
	}
	if records == nil {
		records = []T{}
	}

	return Page[T]{
		Items: records,
		Total: total,
		Page:  params.Page,
		Limit: params.Limit,
	}, nil
}

func (c *CachedRepository[T]) checkScope(scope authz.Scope) error {
	if scope.IsZero() {
		return authz.Unauthorized()
	}

	want := authz.KindCatalog
	if c.opts.ResourceType == invalidation.OwnerScoped {
		want = authz.KindOwner
	}
	if scope.Kind() != want {
		return goerrors.New(fmt.Sprintf("%s requires a %s scope, got %s", c.name, want, scope.Kind()), goerrors.CategoryInternal).
			WithCode(500)
	}
	return nil
}

func (c *CachedRepository[T]) assignOwner(scope authz.Scope, record T) T {
	owner, ok := scope.Owner()
	if !ok || c.opts.AssignOwner == nil {
		return record
	}
	return c.opts.AssignOwner(record, owner)
}

func (c *CachedRepository[T]) validate(record T) error {
	if c.opts.Validate == nil {
		return nil
	}
	return c.opts.Validate(record)
}

// mutated runs after the source acknowledged a write.
func (c *CachedRepository[T]) mutated(ctx context.Context, operation string) error {
	if err := c.bus.OnMutated(ctx, c.opts.ResourceType); err != nil {
		c.logger.Error().Err(err).Str("operation", operation).Msg("listing invalidation failed")
		return err
	}
	return nil
}

func (c *CachedRepository[T]) notFound(id string) *goerrors.Error {
	return goerrors.New(fmt.Sprintf("%s %s not found", c.name, id), goerrors.CategoryNotFound).
		WithCode(404).
		WithTextCode(TextCodeNotFound)
}

// extractID attempts to extract an ID field from a record using reflection
func (c *CachedRepository[T]) extractID(record T) (string, error) {
	v := reflect.ValueOf(record)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return "", errors.New("nil record")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return "", fmt.Errorf("record of kind %s has no fields", v.Kind())
	}

	for _, fieldName := range []string{"ID", "Id"} {
		field := v.FieldByName(fieldName)
		if field.IsValid() && field.CanInterface() {
			return fmt.Sprintf("%v", field.Interface()), nil
		}
	}
	return "", errors.New("no ID field found in record")
}

// isNotFound recognizes missing rows from bun and from go-repository-bun.
func isNotFound(err error) bool {
	if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
		return true
	}
	var gerr *goerrors.Error
	if errors.As(err, &gerr) {
		return gerr.Category == goerrors.CategoryNotFound
	}
	return false
}

func typeName[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	name := toSnake(t.Name())
	if name == "" {
		name = "record"
	}
	return name
}
