// Package repositorycache provides scoped, cached repository decorators for
// go-repository-bun.
//
// # Overview
//
// CachedRepository wraps a Source (the read and write subset of
// repository.Repository[T]) and adds:
//
//   - read-through caching of paginated listings, tagged for invalidation
//   - an authorization Scope on every operation
//   - invalidation of every listing of the resource type after each write
//
// Single record reads are not cached; they are cheap and must reflect writes
// immediately.
//
// # Basic Usage
//
//	users, err := repositorycache.New[*store.User](base, cacheStore, keys, bus,
//		repositorycache.Options[*store.User]{
//			Operation:    "list_users",
//			ResourceType: invalidation.OwnerScoped,
//			OwnerColumn:  "customer_id",
//			OwnerOf:      func(u *store.User) uuid.UUID { return u.CustomerID },
//		})
//
//	scope, err := gate.Scope(ctx, customerID)
//	if err != nil {
//		return err
//	}
//	page, err := users.ListPage(ctx, scope, pagination.Parse(rawPage, rawLimit))
//
// # Keys and Tags
//
// A listing key is built from the operation, page and limit and, for owner
// scoped resources, the owner id, so two customers never share a cached page.
// Every listing carries the tags of its resource type
// (invalidation.TagProducts or invalidation.TagUsers) plus any tags attached
// to the context with WithCacheTags.
//
// # Write Ordering
//
// Create, Update and Delete persist through the Source first. Only after the
// Source returns successfully is the invalidation bus notified, and the call
// returns only after the invalidation completed. A caller that writes and
// then lists therefore never sees the listing from before its write.
//
// # Error Handling
//
// Errors from the Source are propagated unchanged. Missing records and
// records outside the scope are reported as the same go-errors NotFound
// error so a caller cannot probe for other customers' ids. A zero Scope is
// rejected with the authz Unauthorized error before the cache or the Source
// is touched.
//
// # See Also
//
// For key building and the cache store, see the cache package.
// For dependency injection setup, see the pkg/di package.
package repositorycache
