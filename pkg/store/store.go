// Package store is the typed, transactional persistence layer (C1). It
// owns the only direct access to Postgres and exposes row-level
// operations for every entity named in the specification, each scoped
// by tenant_id. No other package issues SQL directly.
package store

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/agentmem/pkg/database"
)

// Store wraps a pooled *sql.DB and implements every persistence
// contract used by the ingestion, overlay, retrieval, orchestrator,
// handoff, consolidation, and audit subsystems.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// New wraps an already-migrated connection pool (see database.Client).
func New(db *sql.DB, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{db: db, log: log.With("component", "store")}
}

// DB exposes the underlying pool for callers (health checks, tests)
// that need it directly.
func (s *Store) DB() *sql.DB { return s.db }

// Health reports connection pool health, mirroring database.Health.
func (s *Store) Health(ctx context.Context) (*database.HealthStatus, error) {
	return database.Health(ctx, s.db)
}

// PurgeTenant physically deletes every row belonging to tenantID across
// all tables. This is the only path by which ground truth is ever
// hard-deleted (§3 global invariants); everything else is logical via
// the edit overlay. Runs in one transaction so a failure mid-purge
// leaves the tenant's data untouched rather than partially deleted.
func (s *Store) PurgeTenant(ctx context.Context, tenantID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapBackend("begin purge transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Children first (events cascade to chunks/artifacts, but the other
	// tables have no FK to events and must be purged explicitly).
	tables := []string{
		"audit_events",
		"reflections",
		"consolidation_jobs",
		"capsules",
		"memory_edits",
		"knowledge_notes",
		"handoffs",
		"decisions",
		"artifacts",
		"chunks",
		"events",
	}
	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE tenant_id = $1", tenantID); err != nil {
			return wrapBackend("purge "+table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapBackend("commit purge transaction", err)
	}
	s.log.Info("purged tenant", "tenant_id", tenantID)
	return nil
}

// withDeadline applies the write/read deadlines the spec requires
// (§5) when the caller hasn't already set one.
func withDeadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
