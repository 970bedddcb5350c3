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

// CreateCapsule inserts a time-bounded, audience-restricted capsule.
func (s *Store) CreateCapsule(ctx context.Context, c models.Capsule) error {
	audience, _ := json.Marshal(c.AudienceAgentIDs)
	items, _ := json.Marshal(c.Items)
	risks, _ := json.Marshal(c.Risks)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO capsules
			(capsule_id, tenant_id, author_agent_id, subject_type, subject_id, scope,
			 audience_agent_ids, items, risks, ttl_days, expires_at, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		c.CapsuleID, c.TenantID, c.AuthorAgentID, c.SubjectType, c.SubjectID, c.Scope,
		audience, items, risks, c.TTLDays, c.ExpiresAt, string(c.Status),
	)
	if err != nil {
		return wrapBackend("insert capsule", err)
	}
	return nil
}

// GetCapsule returns NotFound for a missing or cross-tenant capsule,
// and Expired if its TTL has elapsed or it was revoked (§6 errors
// table); the row itself is still returned alongside Expired so
// callers needing forensic access (export_identity, audit) can use it.
func (s *Store) GetCapsule(ctx context.Context, tenantID, capsuleID string) (*models.Capsule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT capsule_id, tenant_id, author_agent_id, subject_type, subject_id, scope,
		       audience_agent_ids, items, risks, ttl_days, created_at, expires_at, status
		FROM capsules WHERE capsule_id = $1 AND tenant_id = $2`, capsuleID, tenantID)

	c, err := scanCapsule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound
	}
	if err != nil {
		return nil, wrapBackend("get capsule", err)
	}
	if c.Status != models.CapsuleActive || time.Now().After(c.ExpiresAt) {
		return c, apperr.Expired
	}
	return c, nil
}

// RevokeCapsule marks a capsule revoked. Returns NotFound for a
// missing or cross-tenant capsule.
func (s *Store) RevokeCapsule(ctx context.Context, tenantID, capsuleID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE capsules SET status = $1 WHERE capsule_id = $2 AND tenant_id = $3`,
		string(models.CapsuleRevoked), capsuleID, tenantID)
	if err != nil {
		return wrapBackend("revoke capsule", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapBackend("revoke capsule rows affected", err)
	}
	if n == 0 {
		return apperr.NotFound
	}
	return nil
}

// ListActiveCapsulesForAgent returns active, non-expired capsules whose
// audience includes agentID, for the orchestrator's capsules section
// (§4.5). Subject matching is applied by the caller via
// (*models.Capsule).MatchesSubject, since JSONB containment on
// audience_agent_ids is pushed down here but subject wildcarding rules
// are simplest expressed in Go.
func (s *Store) ListActiveCapsulesForAgent(ctx context.Context, tenantID, agentID string) ([]models.Capsule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT capsule_id, tenant_id, author_agent_id, subject_type, subject_id, scope,
		       audience_agent_ids, items, risks, ttl_days, created_at, expires_at, status
		FROM capsules
		WHERE tenant_id = $1 AND status = 'active' AND expires_at > now()
		  AND audience_agent_ids @> to_jsonb($2::text)
		ORDER BY created_at DESC`, tenantID, agentID)
	if err != nil {
		return nil, wrapBackend("list active capsules", err)
	}
	defer rows.Close()

	var out []models.Capsule
	for rows.Next() {
		c, err := scanCapsule(rows)
		if err != nil {
			return nil, wrapBackend("scan capsule", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// SweepExpiredCapsules flips active capsules past their expiry to
// expired. Supplemental retention housekeeping (SPEC_FULL.md §C); run
// periodically rather than computed lazily at read time, so a capsule
// read close to expiry is never ambiguous mid-request.
func (s *Store) SweepExpiredCapsules(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE capsules SET status = 'expired' WHERE status = 'active' AND expires_at <= now()`)
	if err != nil {
		return 0, wrapBackend("sweep expired capsules", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapBackend("sweep expired capsules rows affected", err)
	}
	return int(n), nil
}

func scanCapsule(row rowScanner) (*models.Capsule, error) {
	var c models.Capsule
	var status string
	var audience, items, risks []byte

	err := row.Scan(
		&c.CapsuleID, &c.TenantID, &c.AuthorAgentID, &c.SubjectType, &c.SubjectID, &c.Scope,
		&audience, &items, &risks, &c.TTLDays, &c.CreatedAt, &c.ExpiresAt, &status,
	)
	if err != nil {
		return nil, err
	}
	c.Status = models.CapsuleStatus(status)
	if len(audience) > 0 {
		if err := json.Unmarshal(audience, &c.AudienceAgentIDs); err != nil {
			return nil, err
		}
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &c.Items); err != nil {
			return nil, err
		}
	}
	if len(risks) > 0 {
		if err := json.Unmarshal(risks, &c.Risks); err != nil {
			return nil, err
		}
	}
	return &c, nil
}
