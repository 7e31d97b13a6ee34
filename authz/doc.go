// Package authz decides whether the authenticated principal may act on
// customer-owned resources.
//
// Owner-scoped operations take a Scope, and the only way to get an owner
// Scope is Gate.Scope, which checks the context principal first. A handler
// therefore cannot reach the cache or the store for a foreign owner without
// going through the check:
//
//	scope, err := gate.Scope(ctx, customerID)
//	if err != nil {
//		return err // 401 "Invalid credentials."
//	}
//	page, err := users.ListPage(ctx, scope, params)
//
// Catalog resources use authz.Catalog().
//
// Principals come from HS256 bearer tokens whose subject is the customer id.
package authz
