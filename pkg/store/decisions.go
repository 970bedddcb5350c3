package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/codeready-toolchain/agentmem/pkg/apperr"
	"github.com/codeready-toolchain/agentmem/pkg/models"
)

// CreateDecision inserts a new active decision.
func (s *Store) CreateDecision(ctx context.Context, d models.Decision) error {
	rationale, _ := json.Marshal(d.Rationale)
	constraints, _ := json.Marshal(d.Constraints)
	alternatives, _ := json.Marshal(d.Alternatives)
	consequences, _ := json.Marshal(d.Consequences)
	tags, _ := json.Marshal(d.Tags)
	refs, _ := json.Marshal(d.Refs)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decisions
			(decision_id, tenant_id, project_id, status, scope, decision, rationale, constraints,
			 alternatives, consequences, tags, subject_type, subject_id, refs, supersedes, ts)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		d.DecisionID, d.TenantID, d.ProjectID, string(d.Status), string(d.Scope), d.Decision,
		rationale, constraints, alternatives, consequences, tags, d.SubjectType, d.SubjectID, refs,
		d.Supersedes, d.TS,
	)
	if err != nil {
		return wrapBackend("insert decision", err)
	}
	return nil
}

// SupersedeDecision marks oldID as superseded by newID, atomically with
// newID's own creation-by-caller (the caller creates the new decision
// first, then calls this to close out the old one).
func (s *Store) SupersedeDecision(ctx context.Context, tenantID, oldID, newID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE decisions SET status = $1, superseded_by = $2
		WHERE decision_id = $3 AND tenant_id = $4 AND status = 'active'`,
		string(models.DecisionSuperseded), newID, oldID, tenantID,
	)
	if err != nil {
		return wrapBackend("supersede decision", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapBackend("supersede decision rows affected", err)
	}
	if n == 0 {
		return apperr.NotFound
	}
	return nil
}

// GetDecision returns NotFound for a missing or cross-tenant decision.
func (s *Store) GetDecision(ctx context.Context, tenantID, decisionID string) (*models.Decision, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT decision_id, tenant_id, project_id, status, scope, decision, rationale, constraints,
		       alternatives, consequences, tags, subject_type, subject_id, refs, superseded_by, supersedes,
		       last_referenced_at, ts, created_at
		FROM decisions WHERE decision_id = $1 AND tenant_id = $2`, decisionID, tenantID)

	d, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound
	}
	if err != nil {
		return nil, wrapBackend("get decision", err)
	}
	return d, nil
}

// TouchDecisionReference updates last_referenced_at, excluding it from
// decision archival's "no read reference within the window" test
// (§4.7) even past the age cutoff.
func (s *Store) TouchDecisionReference(ctx context.Context, tenantID, decisionID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE decisions SET last_referenced_at = $1 WHERE decision_id = $2 AND tenant_id = $3`,
		at, decisionID, tenantID)
	if err != nil {
		return wrapBackend("touch decision reference", err)
	}
	return nil
}

// DecisionListFilters narrows ListActiveDecisions (used by the "rules"
// and "relevant_decisions" ACB sections, and by search/export paths).
type DecisionListFilters struct {
	ProjectID   string
	Scope       models.DecisionScope
	SubjectType string
	SubjectID   string
	QueryTerms  []string
}

// ListActiveDecisions returns active decisions matching filters, ranked
// by recency, most recent first.
func (s *Store) ListActiveDecisions(ctx context.Context, tenantID string, filters DecisionListFilters, limit int) ([]models.Decision, error) {
	where := []string{"tenant_id = $1", "status = 'active'"}
	args := []any{tenantID}
	argN := 2

	if filters.ProjectID != "" {
		where = append(where, "project_id = $"+strconv.Itoa(argN))
		args = append(args, filters.ProjectID)
		argN++
	}
	if filters.Scope != "" {
		where = append(where, "scope = $"+strconv.Itoa(argN))
		args = append(args, string(filters.Scope))
		argN++
	}
	if filters.SubjectType != "" {
		where = append(where, "subject_type = $"+strconv.Itoa(argN))
		args = append(args, filters.SubjectType)
		argN++
	}
	if filters.SubjectID != "" {
		where = append(where, "subject_id = $"+strconv.Itoa(argN))
		args = append(args, filters.SubjectID)
		argN++
	}
	if len(filters.QueryTerms) > 0 {
		where = append(where, "to_tsvector('english', decision) @@ to_tsquery('english', $"+strconv.Itoa(argN)+")")
		args = append(args, strings.Join(filters.QueryTerms, " | "))
		argN++
	}

	args = append(args, limit)
	query := `
		SELECT decision_id, tenant_id, project_id, status, scope, decision, rationale, constraints,
		       alternatives, consequences, tags, subject_type, subject_id, refs, superseded_by, supersedes,
		       last_referenced_at, ts, created_at
		FROM decisions
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY ts DESC
		LIMIT $` + strconv.Itoa(argN)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapBackend("list active decisions", err)
	}
	defer rows.Close()

	var out []models.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, wrapBackend("scan decision", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// ListSafetyCriticalDecisions returns active decisions tagged "safety"
// for the subject, used by the orchestrator's sticky-invariant check.
func (s *Store) ListSafetyCriticalDecisions(ctx context.Context, tenantID, subjectType, subjectID string) ([]models.Decision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT decision_id, tenant_id, project_id, status, scope, decision, rationale, constraints,
		       alternatives, consequences, tags, subject_type, subject_id, refs, superseded_by, supersedes,
		       last_referenced_at, ts, created_at
		FROM decisions
		WHERE tenant_id = $1 AND status = 'active' AND tags ? 'safety'
		  AND (subject_type = '' OR subject_type = $2)
		  AND (subject_id = '' OR subject_id = $3)
		ORDER BY ts DESC`, tenantID, subjectType, subjectID)
	if err != nil {
		return nil, wrapBackend("list safety-critical decisions", err)
	}
	defer rows.Close()

	var out []models.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, wrapBackend("scan safety decision", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// ArchiveDecisionsOlderThan archives (active -> archived) decisions
// older than cutoff with no read reference since cutoff, honoring
// consolidation's idempotent re-run contract (§4.7). Returns how many
// rows were flipped.
func (s *Store) ArchiveDecisionsOlderThan(ctx context.Context, tenantID string, cutoff time.Time, limit int) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE decisions SET status = 'archived'
		WHERE tenant_id = $1 AND status = 'active' AND ts < $2
		  AND (last_referenced_at IS NULL OR last_referenced_at < $2)
		  AND decision_id IN (
		    SELECT decision_id FROM decisions
		    WHERE tenant_id = $1 AND status = 'active' AND ts < $2
		      AND (last_referenced_at IS NULL OR last_referenced_at < $2)
		    LIMIT $3
		  )`, tenantID, cutoff, limit)
	if err != nil {
		return 0, wrapBackend("archive decisions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapBackend("archive decisions rows affected", err)
	}
	return int(n), nil
}

func scanDecision(row rowScanner) (*models.Decision, error) {
	var d models.Decision
	var status, scope string
	var rationale, constraints, alternatives, consequences, tags, refs []byte
	var lastRef sql.NullTime

	err := row.Scan(
		&d.DecisionID, &d.TenantID, &d.ProjectID, &status, &scope, &d.Decision, &rationale, &constraints,
		&alternatives, &consequences, &tags, &d.SubjectType, &d.SubjectID, &refs, &d.SupersededBy, &d.Supersedes,
		&lastRef, &d.TS, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Status = models.DecisionStatus(status)
	d.Scope = models.DecisionScope(scope)
	if lastRef.Valid {
		d.LastReferencedAt = lastRef.Time
	}
	for _, pair := range []struct {
		raw []byte
		out any
	}{
		{rationale, &d.Rationale}, {constraints, &d.Constraints}, {alternatives, &d.Alternatives},
		{consequences, &d.Consequences}, {tags, &d.Tags}, {refs, &d.Refs},
	} {
		if len(pair.raw) > 0 {
			if err := json.Unmarshal(pair.raw, pair.out); err != nil {
				return nil, err
			}
		}
	}
	return &d, nil
}


