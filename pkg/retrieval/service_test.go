package retrieval_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/agentmem/pkg/config"
	"github.com/codeready-toolchain/agentmem/pkg/models"
	"github.com/codeready-toolchain/agentmem/pkg/retrieval"
	"github.com/codeready-toolchain/agentmem/pkg/store"
)

type fakeChunkStore struct {
	results []store.RankedChunk
}

func (f *fakeChunkStore) SearchChunks(_ context.Context, _ string, _ []string, _ store.ChunkFilters, _, limitReturn int) ([]store.RankedChunk, error) {
	out := f.results
	if len(out) > limitReturn {
		out = out[:limitReturn]
	}
	return out, nil
}

type fakeEditLister struct {
	byTarget map[string][]models.MemoryEdit
}

func (f *fakeEditLister) EditsFor(_ context.Context, _ string, _ models.EditTargetType, targetID string) ([]models.MemoryEdit, error) {
	return f.byTarget[targetID], nil
}

func testCfg() config.RetrievalConfig {
	return config.RetrievalConfig{
		CandidatePoolMax: 2000, ScoredMax: 200,
		RecencyTauDays: 14, Alpha: 0.6, Beta: 0.3, Gamma: 0.1,
	}
}

func TestSearchChunksSkipsRetractedAndPacksByBudget(t *testing.T) {
	now := time.Now().UTC()
	chunkStore := &fakeChunkStore{results: []store.RankedChunk{
		{Chunk: models.Chunk{ChunkID: "chk_1", Text: "alpha", TokenEst: 50, Importance: 0.5, TS: now}, Rank: 1.0},
		{Chunk: models.Chunk{ChunkID: "chk_2", Text: "beta", TokenEst: 50, Importance: 0.5, TS: now}, Rank: 0.5},
		{Chunk: models.Chunk{ChunkID: "chk_3", Text: "gamma retracted", TokenEst: 10, Importance: 0.9, TS: now}, Rank: 0.9},
	}}
	edits := &fakeEditLister{byTarget: map[string][]models.MemoryEdit{
		"chk_3": {{Op: models.OpRetract}},
	}}

	svc := retrieval.New(chunkStore, edits, testCfg(), nil)
	results, omissions, err := svc.SearchChunks(context.Background(), "tenant-1", retrieval.Request{
		QueryText: "alpha", Channel: models.ChannelPrivate, TokenBudget: 60,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "chk_1", results[0].Chunk.ChunkID)
	require.Len(t, omissions, 1)
	require.Equal(t, models.ReasonBudgetExceeded, omissions[0].Reason)
	require.Equal(t, []string{"chk_2"}, omissions[0].Candidates)
}

func TestSearchChunksAppliesAttenuateBeforeScoring(t *testing.T) {
	now := time.Now().UTC()
	chunkStore := &fakeChunkStore{results: []store.RankedChunk{
		{Chunk: models.Chunk{ChunkID: "chk_1", Text: "x", TokenEst: 10, Importance: 1.0, TS: now}, Rank: 1.0},
	}}
	edits := &fakeEditLister{byTarget: map[string][]models.MemoryEdit{
		"chk_1": {{Op: models.OpAttenuate, Patch: models.EditPatch{ImportanceDelta: 0.8}}},
	}}

	svc := retrieval.New(chunkStore, edits, testCfg(), nil)
	results, omissions, err := svc.SearchChunks(context.Background(), "tenant-1", retrieval.Request{
		Channel: models.ChannelPrivate, TokenBudget: 100,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.InDelta(t, 0.2, results[0].Chunk.Importance, 1e-9)
	require.Empty(t, omissions)
}

func TestSearchChunksRecordsOversizeOmissionForChunkLargerThanBudget(t *testing.T) {
	now := time.Now().UTC()
	chunkStore := &fakeChunkStore{results: []store.RankedChunk{
		{Chunk: models.Chunk{ChunkID: "chk_huge", Text: "huge", TokenEst: 200, Importance: 0.5, TS: now}, Rank: 1.0},
	}}
	edits := &fakeEditLister{byTarget: map[string][]models.MemoryEdit{}}

	svc := retrieval.New(chunkStore, edits, testCfg(), nil)
	results, omissions, err := svc.SearchChunks(context.Background(), "tenant-1", retrieval.Request{
		Channel: models.ChannelPrivate, TokenBudget: 100,
	})
	require.NoError(t, err)
	require.Empty(t, results)
	require.Len(t, omissions, 1)
	require.Equal(t, models.ReasonOversize, omissions[0].Reason)
	require.Equal(t, []string{"chk_huge"}, omissions[0].Candidates)
}

func TestSearchChunksReturnsNilWhenNoCandidates(t *testing.T) {
	chunkStore := &fakeChunkStore{}
	edits := &fakeEditLister{byTarget: map[string][]models.MemoryEdit{}}

	svc := retrieval.New(chunkStore, edits, testCfg(), nil)
	results, omissions, err := svc.SearchChunks(context.Background(), "tenant-1", retrieval.Request{Channel: models.ChannelPrivate, TokenBudget: 100})
	require.NoError(t, err)
	require.Empty(t, results)
	require.Empty(t, omissions)
}
