package ingestion

import (
	"strings"

	"github.com/codeready-toolchain/agentmem/pkg/ids"
	"github.com/codeready-toolchain/agentmem/pkg/models"
)

// tokenEst approximates a token count from rune-adjusted byte length,
// rounding up on any remainder (§4.2 step 4 tie-break rule).
func tokenEst(text string) int {
	n := len([]rune(text))
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

// extractChunkText derives the indexable text for an event by kind
// (§4.2 step 4). Kinds with no natural text (tool_call, artifact)
// produce an empty string, which extractChunks turns into zero chunks.
func extractChunkText(kind models.EventKind, c models.EventContent) string {
	switch kind {
	case models.KindMessage:
		return c.Text
	case models.KindToolResult:
		return c.ExcerptText
	case models.KindDecision:
		parts := make([]string, 0, 1+len(c.Rationale))
		parts = append(parts, c.Decision)
		parts = append(parts, c.Rationale...)
		return strings.Join(parts, "\n")
	case models.KindTaskUpdate:
		return c.Note
	default:
		return ""
	}
}

// importanceFor applies the fixed kind-based importance table, with a
// "pinned" tag overriding the kind default when present (§4.2 step 4,
// models.Importance* constants).
func importanceFor(kind models.EventKind, tags []string) float64 {
	for _, t := range tags {
		if t == models.PinnedTag {
			return models.ImportancePinned
		}
	}
	switch kind {
	case models.KindDecision:
		return models.ImportanceDecision
	case models.KindTaskUpdate:
		return models.ImportanceTaskUpdate
	default:
		return models.ImportanceDefault
	}
}

// extractChunks derives the zero-or-one chunk for an event. The spec
// describes a single chunk per event rather than a splitter (§4.2 step
// 4); an empty extracted text yields zero chunks, per the documented
// edge case.
func extractChunks(evt models.Event) []models.Chunk {
	text := extractChunkText(evt.Kind, evt.Content)
	if text == "" {
		return nil
	}
	return []models.Chunk{{
		ChunkID:     ids.NewAt(ids.PrefixChunk, evt.TS),
		EventID:     evt.EventID,
		TenantID:    evt.TenantID,
		SessionID:   evt.SessionID,
		ProjectID:   evt.ProjectID,
		SubjectType: evt.SubjectType,
		SubjectID:   evt.SubjectID,
		Channel:     evt.Channel,
		Sensitivity: evt.Sensitivity,
		Tags:        evt.Tags,
		Kind:        evt.Kind,
		Text:        text,
		TokenEst:    tokenEst(text),
		Importance:  importanceFor(evt.Kind, evt.Tags),
		TS:          evt.TS,
	}}
}
