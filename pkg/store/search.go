package store

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/codeready-toolchain/agentmem/pkg/models"
)

// ChunkFilters narrows a search_chunks call (§4.1, §4.4).
type ChunkFilters struct {
	Channel            models.Channel
	SensitivityAllowed []models.Sensitivity
	Scope              string
	SubjectType        string
	SubjectID          string
	Kinds              []models.EventKind
}

// RankedChunk is one search_chunks result: a chunk plus the full-text
// rank the database assigned it within the candidate pool.
type RankedChunk struct {
	Chunk models.Chunk
	Rank  float64
}

// SearchChunks is the full-text search primitive (§4.1). queryTerms may
// be empty, in which case results are ordered by recency only (used by
// recent_window-style callers that still want filter/limit semantics).
// limitCandidates bounds the candidate pool pulled from the engine;
// limitReturn bounds what's actually returned. limitCandidates is the
// SQL LIMIT; limitReturn stops the row scan here, so the retrieval
// engine never has to discard rows itself.
func (s *Store) SearchChunks(ctx context.Context, tenantID string, queryTerms []string, filters ChunkFilters, limitCandidates, limitReturn int) ([]RankedChunk, error) {
	var (
		where  = []string{"tenant_id = $1"}
		args   = []any{tenantID}
		argN   = 2
		rankSQ = "0"
	)

	if len(queryTerms) > 0 {
		tsQuery := strings.Join(queryTerms, " | ")
		where = append(where, "to_tsvector('english', text) @@ to_tsquery('english', $"+strconv.Itoa(argN)+")")
		args = append(args, tsQuery)
		rankSQ = "ts_rank(to_tsvector('english', text), to_tsquery('english', $" + strconv.Itoa(argN) + "))"
		argN++
	}

	if filters.Channel != "" {
		where = append(where, "channel = $"+strconv.Itoa(argN))
		args = append(args, string(filters.Channel))
		argN++
	}
	if len(filters.SensitivityAllowed) > 0 {
		ph := make([]string, len(filters.SensitivityAllowed))
		for i, sens := range filters.SensitivityAllowed {
			ph[i] = "$" + strconv.Itoa(argN)
			args = append(args, string(sens))
			argN++
		}
		where = append(where, "sensitivity IN ("+strings.Join(ph, ",")+")")
	}
	if filters.Scope != "" {
		where = append(where, "project_id = $"+strconv.Itoa(argN))
		args = append(args, filters.Scope)
		argN++
	}
	if filters.SubjectType != "" {
		where = append(where, "subject_type = $"+strconv.Itoa(argN))
		args = append(args, filters.SubjectType)
		argN++
		if filters.SubjectID != "" {
			where = append(where, "subject_id = $"+strconv.Itoa(argN))
			args = append(args, filters.SubjectID)
			argN++
		}
	}
	if len(filters.Kinds) > 0 {
		ph := make([]string, len(filters.Kinds))
		for i, k := range filters.Kinds {
			ph[i] = "$" + strconv.Itoa(argN)
			args = append(args, string(k))
			argN++
		}
		where = append(where, "kind IN ("+strings.Join(ph, ",")+")")
	}

	args = append(args, limitCandidates)
	query := `
		SELECT chunk_id, event_id, tenant_id, session_id, project_id, subject_type, subject_id,
		       channel, sensitivity, tags, kind, text, token_est, importance, ts, created_at, ` + rankSQ + ` AS rank
		FROM chunks
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY rank DESC, ts DESC, chunk_id DESC
		LIMIT $` + strconv.Itoa(argN)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapBackend("search chunks", err)
	}
	defer rows.Close()

	var out []RankedChunk
	for rows.Next() {
		var c models.Chunk
		var channel, sensitivity, kind string
		var tags []byte
		var rank float64
		if err := rows.Scan(
			&c.ChunkID, &c.EventID, &c.TenantID, &c.SessionID, &c.ProjectID, &c.SubjectType, &c.SubjectID,
			&channel, &sensitivity, &tags, &kind, &c.Text, &c.TokenEst, &c.Importance, &c.TS, &c.CreatedAt, &rank,
		); err != nil {
			return nil, wrapBackend("scan ranked chunk", err)
		}
		c.Channel = models.Channel(channel)
		c.Sensitivity = models.Sensitivity(sensitivity)
		c.Kind = models.EventKind(kind)
		if len(tags) > 0 {
			if err := json.Unmarshal(tags, &c.Tags); err != nil {
				return nil, wrapBackend("unmarshal chunk tags", err)
			}
		}
		out = append(out, RankedChunk{Chunk: c, Rank: rank})
		if len(out) >= limitReturn {
			break
		}
	}
	return out, rows.Err()
}

