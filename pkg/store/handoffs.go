package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/codeready-toolchain/agentmem/pkg/models"
)

// CreateHandoff inserts a full-compression handoff (§4.6).
func (s *Store) CreateHandoff(ctx context.Context, h models.Handoff) error {
	tags, _ := json.Marshal(h.Tags)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO handoffs
			(handoff_id, tenant_id, session_id, experienced, noticed, learned, remember,
			 story, becoming, significance, tags, with_whom, compression_level)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		h.HandoffID, h.TenantID, h.SessionID, h.Experienced, h.Noticed, h.Learned, h.Remember,
		h.Story, h.Becoming, h.Significance, tags, h.WithWhom, string(h.CompressionLevel),
	)
	if err != nil {
		return wrapBackend("insert handoff", err)
	}
	return nil
}

// GetLastHandoff returns the most recent handoff for the tenant,
// optionally restricted to a with_whom value. Returns (nil, nil) when
// none exists — §4.6 models this as an optional result, not NotFound.
func (s *Store) GetLastHandoff(ctx context.Context, tenantID, withWhom string) (*models.Handoff, error) {
	query := `
		SELECT handoff_id, tenant_id, session_id, experienced, noticed, learned, remember,
		       story, becoming, significance, tags, with_whom, compression_level, integrated_into, created_at
		FROM handoffs WHERE tenant_id = $1`
	args := []any{tenantID}
	if withWhom != "" {
		query += " AND with_whom = $2"
		args = append(args, withWhom)
	}
	query += " ORDER BY created_at DESC LIMIT 1"

	row := s.db.QueryRowContext(ctx, query, args...)
	h, err := scanHandoff(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapBackend("get last handoff", err)
	}
	return h, nil
}

// GetIdentityThread returns handoffs with a non-empty becoming
// statement, ordered by created_at desc (§4.6).
func (s *Store) GetIdentityThread(ctx context.Context, tenantID string) ([]models.Handoff, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT handoff_id, tenant_id, session_id, experienced, noticed, learned, remember,
		       story, becoming, significance, tags, with_whom, compression_level, integrated_into, created_at
		FROM handoffs
		WHERE tenant_id = $1 AND becoming <> ''
		ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, wrapBackend("get identity thread", err)
	}
	defer rows.Close()

	var out []models.Handoff
	for rows.Next() {
		h, err := scanHandoff(rows)
		if err != nil {
			return nil, wrapBackend("scan identity thread handoff", err)
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

// ListHandoffsForCompression returns one tenant's handoffs at fromLevel
// older than cutoff, up to limit — the query consolidation's handoff
// compression pass uses to pick its batch (§4.7), filtered so
// idempotent re-runs converge to zero rows once a batch is compressed.
func (s *Store) ListHandoffsForCompression(ctx context.Context, tenantID string, fromLevel models.CompressionLevel, cutoff time.Time, limit int) ([]models.Handoff, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT handoff_id, tenant_id, session_id, experienced, noticed, learned, remember,
		       story, becoming, significance, tags, with_whom, compression_level, integrated_into, created_at
		FROM handoffs
		WHERE tenant_id = $1 AND compression_level = $2 AND created_at < $3
		ORDER BY created_at ASC
		LIMIT $4`, tenantID, string(fromLevel), cutoff, limit)
	if err != nil {
		return nil, wrapBackend("list handoffs for compression", err)
	}
	defer rows.Close()

	var out []models.Handoff
	for rows.Next() {
		h, err := scanHandoff(rows)
		if err != nil {
			return nil, wrapBackend("scan handoff for compression", err)
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

// UpdateHandoffCompression writes a new compact content and compression
// level for a handoff. Lower levels discard the earlier full text per
// §4.7 ("source content retained only at full").
func (s *Store) UpdateHandoffCompression(ctx context.Context, handoffID string, level models.CompressionLevel, experienced, noticed, learned, remember, story, becoming string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE handoffs
		SET compression_level = $1, experienced = $2, noticed = $3, learned = $4, remember = $5,
		    story = $6, becoming = $7
		WHERE handoff_id = $8`,
		string(level), experienced, noticed, learned, remember, story, becoming, handoffID,
	)
	if err != nil {
		return wrapBackend("update handoff compression", err)
	}
	return nil
}

// MarkHandoffIntegrated records the Knowledge Note a handoff's becoming
// statement was merged into by identity synthesis (§4.7).
func (s *Store) MarkHandoffIntegrated(ctx context.Context, handoffID, noteID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE handoffs SET integrated_into = $1 WHERE handoff_id = $2`, noteID, handoffID)
	if err != nil {
		return wrapBackend("mark handoff integrated", err)
	}
	return nil
}

// CreateKnowledgeNote inserts a synthesized identity-thread insight
// (§4.7 identity synthesis).
func (s *Store) CreateKnowledgeNote(ctx context.Context, n models.KnowledgeNote) error {
	src, _ := json.Marshal(n.SourceHandoffs)
	tags, _ := json.Marshal(n.Tags)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO knowledge_notes (note_id, tenant_id, title, content, source_handoffs, confidence, tags)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		n.NoteID, n.TenantID, n.Title, n.Content, src, n.Confidence, tags,
	)
	if err != nil {
		return wrapBackend("insert knowledge note", err)
	}
	return nil
}

// CountKnowledgeNotes is used by wake_up's summary counts (§4.6).
func (s *Store) CountKnowledgeNotes(ctx context.Context, tenantID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM knowledge_notes WHERE tenant_id = $1`, tenantID).Scan(&n)
	if err != nil {
		return 0, wrapBackend("count knowledge notes", err)
	}
	return n, nil
}

// CountActiveDecisions is used by wake_up's summary counts (§4.6).
func (s *Store) CountActiveDecisions(ctx context.Context, tenantID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM decisions WHERE tenant_id = $1 AND status = 'active'`, tenantID).Scan(&n)
	if err != nil {
		return 0, wrapBackend("count active decisions", err)
	}
	return n, nil
}

func scanHandoff(row rowScanner) (*models.Handoff, error) {
	var h models.Handoff
	var level string
	var tags []byte
	var integratedInto sql.NullString

	err := row.Scan(
		&h.HandoffID, &h.TenantID, &h.SessionID, &h.Experienced, &h.Noticed, &h.Learned, &h.Remember,
		&h.Story, &h.Becoming, &h.Significance, &tags, &h.WithWhom, &level, &integratedInto, &h.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	h.CompressionLevel = models.CompressionLevel(level)
	if integratedInto.Valid {
		h.IntegratedInto = integratedInto.String
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &h.Tags); err != nil {
			return nil, err
		}
	}
	return &h, nil
}
