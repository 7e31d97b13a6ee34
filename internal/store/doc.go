// Package store holds the bun models, repositories, migrations and fixture
// data behind the catalog API.
//
// Both sqlite (mattn/go-sqlite3) and postgres (lib/pq) are supported; the
// dialect follows the driver chosen in Config. Repositories are plain
// go-repository-bun repositories and know nothing about caching or
// authorization; see the repositorycache package for that.
package store
