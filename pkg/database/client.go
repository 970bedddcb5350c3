// Package database provides the PostgreSQL connection pool and schema
// migration utilities underlying the Store (C1). Adapted from tarsy's
// pkg/database, with Ent's generated client removed: this module talks
// to Postgres directly through pgx, since there is no generated ent/
// client to layer on top of (see DESIGN.md).
package database

import (
	"context"
	stdsql "database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

//go:embed migrations
var migrationsFS embed.FS

// Client wraps a pooled *sql.DB configured for the pgx driver.
type Client struct {
	db *stdsql.DB
}

// DB returns the underlying connection pool for store queries and
// health checks.
func (c *Client) DB() *stdsql.DB { return c.db }

// Close closes the underlying connection pool.
func (c *Client) Close() error { return c.db.Close() }

// NewClientFromDB wraps an already-open *sql.DB (used by tests against a
// testcontainer-provisioned database).
func NewClientFromDB(db *stdsql.DB) *Client {
	return &Client{db: db}
}

// NewClient opens a pooled connection to Postgres, applies migrations,
// and creates the full-text GIN indexes migrations don't express as
// ordinary DDL-in-a-file (kept in code the way tarsy does, see
// migrations.go).
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := stdsql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(ctx, db, cfg); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Client{db: db}, nil
}

// runMigrations applies embedded SQL migrations with golang-migrate,
// then creates the GIN full-text indexes.
//
// Migration workflow:
//  1. Add a new pkg/database/migrations/NNNN_description.up.sql (+ .down.sql)
//  2. Embedded into the binary at compile time via go:embed
//  3. Applied automatically on startup (this function)
func runMigrations(ctx context.Context, db *stdsql.DB, cfg Config) error {
	return ApplyMigrations(ctx, db, cfg.Database)
}

// ApplyMigrations applies the embedded SQL migrations against db, then
// creates the GIN full-text indexes. migrationName only labels the
// migrate instance (used in its internal logging) and has no bearing
// on which schema the migrations land in — that's governed by db's
// connection search_path, so callers that need per-test schema
// isolation (see test/util) just open db with search_path already
// pointed at the target schema.
func ApplyMigrations(ctx context.Context, db *stdsql.DB, migrationName string) error {
	hasMigrations, err := hasEmbeddedMigrations()
	if err != nil {
		return fmt.Errorf("failed to check embedded migrations: %w", err)
	}
	if !hasMigrations {
		return fmt.Errorf("no embedded migration files found — binary may be built incorrectly")
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, migrationName, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// We must not call m.Close(), which would also close db via the
	// shared *sql.DB passed to postgres.WithInstance.
	if err := sourceDriver.Close(); err != nil {
		return fmt.Errorf("failed to close migration source: %w", err)
	}

	if err := CreateGINIndexes(ctx, db); err != nil {
		return fmt.Errorf("failed to create GIN indexes: %w", err)
	}

	return nil
}

func hasEmbeddedMigrations() (bool, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read embedded migrations: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && len(entry.Name()) > 4 && entry.Name()[len(entry.Name())-4:] == ".sql" {
			return true, nil
		}
	}
	return false, nil
}

// CreateGINIndexes creates the full-text search GIN indexes on
// chunk.text. Idempotent (IF NOT EXISTS).
func CreateGINIndexes(ctx context.Context, db *stdsql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_chunks_text_gin
		ON chunks USING gin(to_tsvector('english', text))`)
	if err != nil {
		return fmt.Errorf("failed to create chunks text GIN index: %w", err)
	}
	return nil
}
