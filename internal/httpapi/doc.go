// Package httpapi exposes the catalog and customer users over HTTP.
//
// Every resource route requires an HS256 bearer token whose subject is the
// customer id. Owner scoped routes additionally pass the customer id in the
// path through the authz gate; a mismatch is answered with 401 and the
// historical body {"status":"401","message":"Invalid credentials."} before
// any cache or database work happens.
//
// Listings are JSON arrays with the total in X-Total-Count and an ETag of the
// body. /health and /metrics are served without authentication.
package httpapi
