package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/codeready-toolchain/agentmem/pkg/apperr"
	"github.com/codeready-toolchain/agentmem/pkg/models"
)

// seqCounters hands out a monotonic per-session sequence number so
// events sharing a timestamp still sort deterministically (§5 ordering
// guarantees). Scoped to the process, which is sufficient because a
// single Store is the only writer of a given session's events in this
// deployment shape (no multi-writer fan-in).
var (
	seqMu       sync.Mutex
	seqCounters = map[string]int64{}
)

func nextSeqNo(sessionID string) int64 {
	seqMu.Lock()
	defer seqMu.Unlock()
	seqCounters[sessionID]++
	return seqCounters[sessionID]
}

// InsertEventWithChunks atomically inserts one event, its zero-or-more
// derived chunks, and the optional artifact produced by tool-result
// offload (§4.1, §4.2 step 5). All-or-nothing: any failure rolls back
// the whole batch.
func (s *Store) InsertEventWithChunks(ctx context.Context, evt models.Event, chunks []models.Chunk, artifact *models.Artifact) error {
	ctx, cancel := withDeadline(ctx, 30*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapBackend("begin event insert", err)
	}
	defer func() { _ = tx.Rollback() }()

	evt.SeqNo = nextSeqNo(evt.SessionID)

	tags, err := json.Marshal(evt.Tags)
	if err != nil {
		return wrapBackend("marshal event tags", err)
	}
	content, err := json.Marshal(evt.Content)
	if err != nil {
		return wrapBackend("marshal event content", err)
	}
	refs, err := json.Marshal(evt.Refs)
	if err != nil {
		return wrapBackend("marshal event refs", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events
			(event_id, tenant_id, session_id, project_id, subject_type, subject_id,
			 channel, sensitivity, tags, actor_type, actor_id, kind, ts, seq_no, content, refs)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		evt.EventID, evt.TenantID, evt.SessionID, evt.ProjectID, evt.SubjectType, evt.SubjectID,
		string(evt.Channel), string(evt.Sensitivity), tags, string(evt.Actor.Type), evt.Actor.ID,
		string(evt.Kind), evt.TS, evt.SeqNo, content, refs,
	)
	if err != nil {
		return wrapBackend("insert event", err)
	}

	for _, c := range chunks {
		cTags, err := json.Marshal(c.Tags)
		if err != nil {
			return wrapBackend("marshal chunk tags", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO chunks
				(chunk_id, event_id, tenant_id, session_id, project_id, subject_type, subject_id,
				 channel, sensitivity, tags, kind, text, token_est, importance, ts)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
			c.ChunkID, c.EventID, c.TenantID, c.SessionID, c.ProjectID, c.SubjectType, c.SubjectID,
			string(c.Channel), string(c.Sensitivity), cTags, string(c.Kind), c.Text, c.TokenEst, c.Importance, c.TS,
		)
		if err != nil {
			return wrapBackend("insert chunk", err)
		}
	}

	if artifact != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO artifacts (artifact_id, tenant_id, event_id, content_type, size_bytes, data)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			artifact.ArtifactID, artifact.TenantID, artifact.EventID, artifact.ContentType, artifact.SizeBytes, artifact.Data,
		)
		if err != nil {
			return wrapBackend("insert artifact", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapBackend("commit event insert", err)
	}
	return nil
}

// GetEvent returns NotFound both when event_id doesn't exist and when
// it belongs to another tenant — the two are indistinguishable by
// design (§4.1).
func (s *Store) GetEvent(ctx context.Context, tenantID, eventID string) (*models.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT event_id, tenant_id, session_id, project_id, subject_type, subject_id,
		       channel, sensitivity, tags, actor_type, actor_id, kind, ts, seq_no, content, refs, created_at
		FROM events WHERE event_id = $1 AND tenant_id = $2`, eventID, tenantID)

	evt, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound
	}
	if err != nil {
		return nil, wrapBackend("get event", err)
	}
	return evt, nil
}

// ListRecentEvents returns the most recent events for a session in
// chronological order, used by the orchestrator's recent_window
// section and by task_state lookups. limit bounds the row count; the
// caller applies token budgeting on top.
func (s *Store) ListRecentEvents(ctx context.Context, tenantID, sessionID string, limit int) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, tenant_id, session_id, project_id, subject_type, subject_id,
		       channel, sensitivity, tags, actor_type, actor_id, kind, ts, seq_no, content, refs, created_at
		FROM events
		WHERE tenant_id = $1 AND session_id = $2
		ORDER BY ts DESC, seq_no DESC
		LIMIT $3`, tenantID, sessionID, limit)
	if err != nil {
		return nil, wrapBackend("list recent events", err)
	}
	defer rows.Close()

	var out []models.Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, wrapBackend("scan recent event", err)
		}
		out = append(out, *evt)
	}
	// Restore chronological order (ascending) for the orchestrator,
	// which appends to recent_window until budget is reached.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

// ListEventsByKind returns the most recent events of a given kind for a
// session (used by task_state, which only wants task_update events).
func (s *Store) ListEventsByKind(ctx context.Context, tenantID, sessionID string, kind models.EventKind, limit int) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, tenant_id, session_id, project_id, subject_type, subject_id,
		       channel, sensitivity, tags, actor_type, actor_id, kind, ts, seq_no, content, refs, created_at
		FROM events
		WHERE tenant_id = $1 AND session_id = $2 AND kind = $3
		ORDER BY ts DESC, seq_no DESC
		LIMIT $4`, tenantID, sessionID, string(kind), limit)
	if err != nil {
		return nil, wrapBackend("list events by kind", err)
	}
	defer rows.Close()

	var out []models.Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, wrapBackend("scan event by kind", err)
		}
		out = append(out, *evt)
	}
	return out, rows.Err()
}

// GetChunksForEvent returns the chunk(s) derived from one event, used
// by the orchestrator's recent_window section to apply the overlay
// before deciding whether an event is visible (§4.5).
func (s *Store) GetChunksForEvent(ctx context.Context, tenantID, eventID string) ([]models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, event_id, tenant_id, session_id, project_id, subject_type, subject_id,
		       channel, sensitivity, tags, kind, text, token_est, importance, ts, created_at
		FROM chunks WHERE tenant_id = $1 AND event_id = $2`, tenantID, eventID)
	if err != nil {
		return nil, wrapBackend("get chunks for event", err)
	}
	defer rows.Close()

	var out []models.Chunk
	for rows.Next() {
		var c models.Chunk
		var channel, sensitivity, kind string
		var tags []byte
		if err := rows.Scan(
			&c.ChunkID, &c.EventID, &c.TenantID, &c.SessionID, &c.ProjectID, &c.SubjectType, &c.SubjectID,
			&channel, &sensitivity, &tags, &kind, &c.Text, &c.TokenEst, &c.Importance, &c.TS, &c.CreatedAt,
		); err != nil {
			return nil, wrapBackend("scan chunk for event", err)
		}
		c.Channel = models.Channel(channel)
		c.Sensitivity = models.Sensitivity(sensitivity)
		c.Kind = models.EventKind(kind)
		if len(tags) > 0 {
			if err := json.Unmarshal(tags, &c.Tags); err != nil {
				return nil, wrapBackend("unmarshal chunk tags for event", err)
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetArtifact fetches the full payload offloaded during tool-result
// normalization.
func (s *Store) GetArtifact(ctx context.Context, tenantID, artifactID string) (*models.Artifact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT artifact_id, tenant_id, event_id, content_type, size_bytes, data, created_at
		FROM artifacts WHERE artifact_id = $1 AND tenant_id = $2`, artifactID, tenantID)

	var a models.Artifact
	err := row.Scan(&a.ArtifactID, &a.TenantID, &a.EventID, &a.ContentType, &a.SizeBytes, &a.Data, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound
	}
	if err != nil {
		return nil, wrapBackend("get artifact", err)
	}
	return &a, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*models.Event, error) {
	var evt models.Event
	var channel, sensitivity, actorType, kind string
	var tags, content, refs []byte

	err := row.Scan(
		&evt.EventID, &evt.TenantID, &evt.SessionID, &evt.ProjectID, &evt.SubjectType, &evt.SubjectID,
		&channel, &sensitivity, &tags, &actorType, &evt.Actor.ID, &kind, &evt.TS, &evt.SeqNo, &content, &refs, &evt.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	evt.Channel = models.Channel(channel)
	evt.Sensitivity = models.Sensitivity(sensitivity)
	evt.Actor.Type = models.ActorType(actorType)
	evt.Kind = models.EventKind(kind)

	if err := json.Unmarshal(tags, &evt.Tags); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(content, &evt.Content); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(refs, &evt.Refs); err != nil {
		return nil, err
	}
	return &evt, nil
}
