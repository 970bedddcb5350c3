package overlay_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/agentmem/pkg/models"
	"github.com/codeready-toolchain/agentmem/pkg/overlay"
)

func chunk() models.Chunk {
	return models.Chunk{ChunkID: "chk_1", Text: "original text", Importance: 0.5}
}

func TestApplyToChunkRetractIsTerminal(t *testing.T) {
	edits := []models.MemoryEdit{
		{Op: models.OpRetract},
		{Op: models.OpAmend, Patch: models.EditPatch{Text: "should never apply"}},
	}
	_, visible := overlay.ApplyToChunk(chunk(), edits, overlay.ReadContext{})
	require.False(t, visible)
}

func TestApplyToChunkAmendReplacesTextAndImportance(t *testing.T) {
	newImportance := 0.9
	edits := []models.MemoryEdit{
		{Op: models.OpAmend, Patch: models.EditPatch{Text: "amended text", Importance: &newImportance}},
	}
	out, visible := overlay.ApplyToChunk(chunk(), edits, overlay.ReadContext{})
	require.True(t, visible)
	require.Equal(t, "amended text", out.Text)
	require.Equal(t, 0.9, out.Importance)
}

func TestApplyToChunkQuarantineHiddenUnlessIncluded(t *testing.T) {
	edits := []models.MemoryEdit{{Op: models.OpQuarantine}}

	_, visible := overlay.ApplyToChunk(chunk(), edits, overlay.ReadContext{})
	require.False(t, visible)

	_, visible = overlay.ApplyToChunk(chunk(), edits, overlay.ReadContext{IncludeQuarantined: true})
	require.True(t, visible)
}

func TestApplyToChunkAttenuateClampsAtZero(t *testing.T) {
	edits := []models.MemoryEdit{{Op: models.OpAttenuate, Patch: models.EditPatch{ImportanceDelta: 10}}}
	out, visible := overlay.ApplyToChunk(chunk(), edits, overlay.ReadContext{})
	require.True(t, visible)
	require.Equal(t, 0.0, out.Importance)
}

func TestApplyToChunkBlockOnlyAffectsMatchingChannel(t *testing.T) {
	edits := []models.MemoryEdit{{Op: models.OpBlock, Patch: models.EditPatch{Channel: models.ChannelPublic}}}

	_, visible := overlay.ApplyToChunk(chunk(), edits, overlay.ReadContext{Channel: models.ChannelPublic})
	require.False(t, visible)

	_, visible = overlay.ApplyToChunk(chunk(), edits, overlay.ReadContext{Channel: models.ChannelPrivate})
	require.True(t, visible)
}

func TestApplyToDecisionRetractAndAmend(t *testing.T) {
	d := models.Decision{DecisionID: "dec_1", Decision: "use postgres"}

	_, visible := overlay.ApplyToDecision(d, []models.MemoryEdit{{Op: models.OpRetract}}, overlay.ReadContext{})
	require.False(t, visible)

	out, visible := overlay.ApplyToDecision(d, []models.MemoryEdit{{Op: models.OpAmend, Patch: models.EditPatch{Text: "use sqlite"}}}, overlay.ReadContext{})
	require.True(t, visible)
	require.Equal(t, "use sqlite", out.Decision)
}
