// Package audit is a thin facade over the append-only audit log (§4.8,
// C8): every other package appends directly through the store, this
// package exists only to gate reads to tenant admins.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/agentmem/pkg/apperr"
	"github.com/codeready-toolchain/agentmem/pkg/models"
)

// auditStore is the subset of *store.Store this package depends on.
type auditStore interface {
	AppendAudit(ctx context.Context, e models.AuditEvent) error
	ListAudit(ctx context.Context, tenantID string, limit int) ([]models.AuditEvent, error)
}

// defaultListLimit caps an unbounded List call.
const defaultListLimit = 500

// Service is the audit log's read/write facade.
type Service struct {
	store auditStore
	log   *slog.Logger
}

// New builds an audit Service.
func New(store auditStore, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, log: log}
}

// Record appends one audit event. TenantID is always taken from the
// principal, never from the caller-supplied event, so a bug elsewhere
// can't forge cross-tenant audit entries.
func (s *Service) Record(ctx context.Context, principal models.Principal, e models.AuditEvent) error {
	e.TenantID = principal.TenantID
	if e.UserID == "" {
		e.UserID = principal.UserID
	}
	if err := s.store.AppendAudit(ctx, e); err != nil {
		s.log.Error("audit append failed", "event_type", e.EventType, "resource_type", e.ResourceType, "error", err)
		return err
	}
	return nil
}

// List returns a tenant's audit trail, most recent first. Forbidden
// unless the principal carries RoleAdmin (§4.8).
func (s *Service) List(ctx context.Context, principal models.Principal, limit int) ([]models.AuditEvent, error) {
	if !principal.HasRole(models.RoleAdmin) {
		_ = s.Record(ctx, principal, models.AuditEvent{
			TS: time.Now().UTC(), EventType: models.EventTypeDataRead, ResourceType: "audit_log",
			Action: "list_audit", Outcome: "forbidden",
		})
		return nil, apperr.Forbidden
	}
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	return s.store.ListAudit(ctx, principal.TenantID, limit)
}
