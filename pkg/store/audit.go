package store

import (
	"context"
	"encoding/json"

	"github.com/codeready-toolchain/agentmem/pkg/models"
)

// AppendAudit writes one append-only audit record (§4.8). Never
// updated or deleted except by tenant purge.
func (s *Store) AppendAudit(ctx context.Context, e models.AuditEvent) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return wrapBackend("marshal audit details", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_events (ts, tenant_id, user_id, event_type, resource_type, resource_id, action, outcome, details)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		e.TS, e.TenantID, e.UserID, e.EventType, e.ResourceType, e.ResourceID, e.Action, e.Outcome, details,
	)
	if err != nil {
		return wrapBackend("insert audit event", err)
	}
	return nil
}

// ListAudit returns audit records for a tenant, most recent first,
// restricted to tenant admins by the caller (§4.8).
func (s *Store) ListAudit(ctx context.Context, tenantID string, limit int) ([]models.AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, tenant_id, user_id, event_type, resource_type, resource_id, action, outcome, details
		FROM audit_events WHERE tenant_id = $1 ORDER BY ts DESC LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, wrapBackend("list audit events", err)
	}
	defer rows.Close()

	var out []models.AuditEvent
	for rows.Next() {
		var e models.AuditEvent
		var details []byte
		if err := rows.Scan(&e.TS, &e.TenantID, &e.UserID, &e.EventType, &e.ResourceType, &e.ResourceID, &e.Action, &e.Outcome, &details); err != nil {
			return nil, wrapBackend("scan audit event", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, wrapBackend("unmarshal audit details", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
