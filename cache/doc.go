// Package cache provides the read-through cache used by the catalog API and
// the key builder that names its entries.
//
// # Overview
//
// The package exports:
//
//   - CacheService: read-through GetOrFetch plus tag based invalidation
//   - KeyBuilder: deterministic keys from an operation name and parameters
//   - GetOrFetch[T]: a typed wrapper that encodes values with msgpack
//
// The default CacheService is a Store built by NewCacheService. It keeps a
// reverse index from tag to keys and a generation counter per tag, so a
// fetch that started before an invalidation never installs its result.
//
// # Basic Usage
//
//	keys := cache.NewKeyBuilder()
//	keys.MustRegister("list_products", "page", "limit")
//
//	key, err := keys.Build("list_products", cache.P("limit", 50), cache.P("page", "1"))
//	// key == "list_products::page=1::limit=50"
//
//	page, err := cache.GetOrFetch(ctx, store, key, []string{"productsCache"},
//		func(ctx context.Context) ([]Product, error) {
//			return repo.FindPage(ctx, 1, 50)
//		})
//
// After a product is created, updated or deleted:
//
//	store.InvalidateTags(ctx, "productsCache")
//
// # Key Format
//
// Keys look like "operation::name=value::name=value". Registered operations
// emit parameters in declaration order, so call order never changes the key.
// Integers are written in minimal decimal form whatever their Go type or
// textual formatting, UUIDs in canonical lowercase form. Any other string is
// escaped ('%', ':' and '=' become %25, %3A and %3D) so a value can never
// forge a separator.
//
// # Failure Handling
//
// Producer errors are returned unchanged and never cached. Backend errors
// fail open: the value is computed directly and the failure is logged and
// counted.
//
// # See Also
//
// For the repository decorator built on top of this package, see the
// repositorycache package.
package cache
