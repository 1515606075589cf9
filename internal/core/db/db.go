// Package db stores rule documents in SQLite or PostgreSQL.
//
// [Open] returns a bare connection for the migration commands. [OpenStore]
// is what everything else uses: it refuses a schema with pending migrations
// and binds the rule document statements to the connection's driver.
package db

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ErrPendingMigrations indicates the schema is behind the embedded migrations.
var ErrPendingMigrations = errors.New("pending migrations")

// Rule documents are read once per LoadWorld and written by the CLI, so a
// handful of connections is plenty.
const (
	postgresMaxOpenConns = 4
	postgresMaxIdleConns = 2
	connMaxIdleTime      = 5 * time.Minute
	connMaxLifetime      = 30 * time.Minute

	sqliteBusyTimeoutMs = 5000
)

// dataSource is a parsed database URL.
type dataSource struct {
	driver string
	dsn    string
}

// parseURL maps sqlite://path, sqlite:///abs/path and postgres://... URLs to
// a driver and DSN. SQLite DSNs get foreign keys and a busy timeout.
func parseURL(dbURL string) (dataSource, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return dataSource{}, fmt.Errorf("invalid database URL: %w", err)
	}

	switch u.Scheme {
	case "sqlite":
		path := u.Path
		if u.Host != "" {
			path = u.Host + u.Path
		}
		if path == "" {
			return dataSource{}, fmt.Errorf("sqlite URL %q has no path", dbURL)
		}
		params := u.Query()
		if !params.Has("_foreign_keys") {
			params.Set("_foreign_keys", "on")
		}
		if !params.Has("_busy_timeout") {
			params.Set("_busy_timeout", fmt.Sprint(sqliteBusyTimeoutMs))
		}
		return dataSource{driver: "sqlite3", dsn: "file:" + path + "?" + params.Encode()}, nil
	case "postgres", "postgresql":
		return dataSource{driver: "postgres", dsn: dbURL}, nil
	default:
		return dataSource{}, fmt.Errorf("unsupported database scheme: %s (expected sqlite or postgres)", u.Scheme)
	}
}

// Open connects to dbURL and verifies the connection.
// SQLite is limited to one open connection; it serialises writers anyway.
func Open(ctx context.Context, dbURL string) (*sqlx.DB, error) {
	src, err := parseURL(dbURL)
	if err != nil {
		return nil, err
	}

	conn, err := sqlx.Open(src.driver, src.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if src.driver == "sqlite3" {
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(postgresMaxOpenConns)
		conn.SetMaxIdleConns(postgresMaxIdleConns)
		conn.SetConnMaxIdleTime(connMaxIdleTime)
		conn.SetConnMaxLifetime(connMaxLifetime)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return conn, nil
}

// Store is the rule document store.
type Store struct {
	db    *sqlx.DB
	stmts statements
}

// OpenStore connects to dbURL, requires a fully migrated schema and loads
// the rule document statements.
func OpenStore(ctx context.Context, dbURL string) (*Store, error) {
	conn, err := Open(ctx, dbURL)
	if err != nil {
		return nil, err
	}
	store, err := NewStore(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return store, nil
}

// NewStore wraps an open connection. It fails with ErrPendingMigrations when
// any embedded migration has not been applied.
func NewStore(ctx context.Context, conn *sqlx.DB) (*Store, error) {
	statuses, err := MigrateStatus(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to check migrations: %w", err)
	}
	if pending := Pending(statuses); len(pending) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrPendingMigrations, strings.Join(pending, ", "))
	}

	stmts, err := loadStatements(conn)
	if err != nil {
		return nil, err
	}
	return &Store{db: conn, stmts: stmts}, nil
}

// Close releases the connection.
func (s *Store) Close() error {
	return s.db.Close()
}
