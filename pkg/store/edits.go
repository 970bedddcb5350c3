package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/codeready-toolchain/agentmem/pkg/apperr"
	"github.com/codeready-toolchain/agentmem/pkg/models"
)

// CreateEdit inserts a Memory Edit in the given status (§4.3).
// pending edits have AppliedAt left nil; edits created already-approved
// (ops that don't require approval) get applied_at set to now.
func (s *Store) CreateEdit(ctx context.Context, e models.MemoryEdit) error {
	patch, err := json.Marshal(e.Patch)
	if err != nil {
		return wrapBackend("marshal edit patch", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memory_edits
			(edit_id, tenant_id, target_type, target_id, op, reason, patch, status, proposed_by, approved_by, applied_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		e.EditID, e.TenantID, string(e.TargetType), e.TargetID, string(e.Op), e.Reason, patch,
		string(e.Status), e.ProposedBy, e.ApprovedBy, e.AppliedAt,
	)
	if err != nil {
		return wrapBackend("insert edit", err)
	}
	return nil
}

// GetEdit returns NotFound for a missing or cross-tenant edit.
func (s *Store) GetEdit(ctx context.Context, tenantID, editID string) (*models.MemoryEdit, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT edit_id, tenant_id, target_type, target_id, op, reason, patch, status, proposed_by, approved_by, created_at, applied_at
		FROM memory_edits WHERE edit_id = $1 AND tenant_id = $2`, editID, tenantID)

	e, err := scanEdit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound
	}
	if err != nil {
		return nil, wrapBackend("get edit", err)
	}
	return e, nil
}

// ApproveEdit transitions a pending edit to approved+applied. Returns
// Conflict if the edit is not currently pending (§6 errors table).
func (s *Store) ApproveEdit(ctx context.Context, tenantID, editID, approvedBy string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE memory_edits SET status = $1, approved_by = $2, applied_at = $3
		WHERE edit_id = $4 AND tenant_id = $5 AND status = $6`,
		string(models.EditApproved), approvedBy, at, editID, tenantID, string(models.EditPending),
	)
	if err != nil {
		return wrapBackend("approve edit", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapBackend("approve edit rows affected", err)
	}
	if n == 0 {
		// Either missing/cross-tenant or not pending; distinguish for a
		// clearer error by checking existence.
		if _, getErr := s.GetEdit(ctx, tenantID, editID); errors.Is(getErr, apperr.NotFound) {
			return apperr.NotFound
		}
		return apperr.Conflict
	}
	return nil
}

// ListEdits returns every edit targeting targetType/targetID for a
// tenant, in approval order (applied_at ascending, then created_at) so the overlay can
// fold them deterministically (§4.3: "applied in approval order").
func (s *Store) ListEdits(ctx context.Context, tenantID string, targetType models.EditTargetType, targetID string) ([]models.MemoryEdit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT edit_id, tenant_id, target_type, target_id, op, reason, patch, status, proposed_by, approved_by, created_at, applied_at
		FROM memory_edits
		WHERE tenant_id = $1 AND target_type = $2 AND target_id = $3 AND status = $4
		ORDER BY applied_at ASC NULLS LAST, created_at ASC`,
		tenantID, string(targetType), targetID, string(models.EditApproved))
	if err != nil {
		return nil, wrapBackend("list edits", err)
	}
	defer rows.Close()

	var out []models.MemoryEdit
	for rows.Next() {
		e, err := scanEdit(rows)
		if err != nil {
			return nil, wrapBackend("scan edit", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// ListEditsForTenant returns every edit for a tenant regardless of
// status or target, for the list_edits logical API operation (§6).
func (s *Store) ListEditsForTenant(ctx context.Context, tenantID string) ([]models.MemoryEdit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT edit_id, tenant_id, target_type, target_id, op, reason, patch, status, proposed_by, approved_by, created_at, applied_at
		FROM memory_edits WHERE tenant_id = $1 ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, wrapBackend("list edits for tenant", err)
	}
	defer rows.Close()

	var out []models.MemoryEdit
	for rows.Next() {
		e, err := scanEdit(rows)
		if err != nil {
			return nil, wrapBackend("scan tenant edit", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanEdit(row rowScanner) (*models.MemoryEdit, error) {
	var e models.MemoryEdit
	var targetType, op, status string
	var patch []byte
	var approvedBy sql.NullString
	var appliedAt sql.NullTime

	err := row.Scan(
		&e.EditID, &e.TenantID, &targetType, &e.TargetID, &op, &e.Reason, &patch, &status,
		&e.ProposedBy, &approvedBy, &e.CreatedAt, &appliedAt,
	)
	if err != nil {
		return nil, err
	}
	e.TargetType = models.EditTargetType(targetType)
	e.Op = models.EditOp(op)
	e.Status = models.EditStatus(status)
	if approvedBy.Valid {
		e.ApprovedBy = approvedBy.String
	}
	if appliedAt.Valid {
		t := appliedAt.Time
		e.AppliedAt = &t
	}
	if len(patch) > 0 {
		if err := json.Unmarshal(patch, &e.Patch); err != nil {
			return nil, err
		}
	}
	return &e, nil
}
