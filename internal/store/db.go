package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// MemoryDSN is a private in-memory sqlite database shared by the
// connections of one *sql.DB.
const MemoryDSN = "file::memory:?cache=shared"

// Config selects the database.
type Config struct {
	Driver string
	DSN    string
	// Debug logs every query at debug level.
	Debug bool
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg Config, logger zerolog.Logger) (*bun.DB, error) {
	var (
		sqldb *sql.DB
		db    *bun.DB
		err   error
	)

	switch cfg.Driver {
	case DriverSQLite, "":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = MemoryDSN
		}
		sqldb, err = sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("store: open sqlite: %w", err)
		}
		// sqlite serializes writers; one connection also keeps a
		// shared in-memory database alive for the lifetime of the pool.
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	case DriverPostgres:
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("store: open postgres: %w", err)
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", cfg.Driver)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", cfg.Driver, err)
	}

	if cfg.Debug {
		db.AddQueryHook(&queryLogger{logger: logger.With().Str("component", "store").Logger()})
	}
	return db, nil
}

type queryLogger struct {
	logger zerolog.Logger
}

func (h *queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *queryLogger) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	evt := h.logger.Debug()
	if event.Err != nil && event.Err != sql.ErrNoRows {
		evt = h.logger.Warn().Err(event.Err)
	}
	evt.Str("operation", event.Operation()).
		Dur("duration", time.Since(event.StartTime)).
		Str("query", event.Query).
		Msg("query")
}
