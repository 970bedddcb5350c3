// Package overlay implements the edit overlay (§4.3, C3): governance
// is made effective at read time by folding approved Memory Edits over
// a ground-truth item, without ever mutating the Event/Decision store.
package overlay

import (
	"github.com/codeready-toolchain/agentmem/pkg/models"
)

// ReadContext carries the per-request knobs the overlay's read
// behavior table depends on (§4.3): which channel is reading, and
// whether quarantined items should be included.
type ReadContext struct {
	Channel            models.Channel
	IncludeQuarantined bool
}

// ApplyToChunk folds edits (already filtered to one target, in
// approval order) over chunk and reports whether the result should be
// visible under ctx. retract is terminal: once applied, every later
// edit for that target is moot, matching the ordering rule in §4.3.
func ApplyToChunk(chunk models.Chunk, edits []models.MemoryEdit, ctx ReadContext) (models.Chunk, bool) {
	quarantined := false
	for _, e := range edits {
		switch e.Op {
		case models.OpRetract:
			return chunk, false
		case models.OpAmend:
			if e.Patch.Text != "" {
				chunk.Text = e.Patch.Text
			}
			if e.Patch.Importance != nil {
				chunk.Importance = *e.Patch.Importance
			}
		case models.OpQuarantine:
			quarantined = true
		case models.OpAttenuate:
			chunk.Importance -= e.Patch.ImportanceDelta
			if chunk.Importance < 0 {
				chunk.Importance = 0
			}
		case models.OpBlock:
			if e.Patch.Channel == ctx.Channel {
				return chunk, false
			}
		}
	}
	if quarantined && !ctx.IncludeQuarantined {
		return chunk, false
	}
	return chunk, true
}

// ApplyToDecision folds edits over a decision with the same read
// behavior table as ApplyToChunk (§4.3). Decisions have no importance
// field to attenuate in the current data model, so attenuate is a
// no-op for decisions beyond the visibility rules shared with chunks.
func ApplyToDecision(decision models.Decision, edits []models.MemoryEdit, ctx ReadContext) (models.Decision, bool) {
	quarantined := false
	for _, e := range edits {
		switch e.Op {
		case models.OpRetract:
			return decision, false
		case models.OpAmend:
			if e.Patch.Text != "" {
				decision.Decision = e.Patch.Text
			}
		case models.OpQuarantine:
			quarantined = true
		case models.OpBlock:
			if e.Patch.Channel == ctx.Channel {
				return decision, false
			}
		}
	}
	if quarantined && !ctx.IncludeQuarantined {
		return decision, false
	}
	return decision, true
}
