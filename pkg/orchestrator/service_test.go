package orchestrator_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/agentmem/pkg/config"
	"github.com/codeready-toolchain/agentmem/pkg/models"
	"github.com/codeready-toolchain/agentmem/pkg/orchestrator"
	"github.com/codeready-toolchain/agentmem/pkg/retrieval"
	"github.com/codeready-toolchain/agentmem/pkg/store"
)

type fakeStore struct {
	decisions       []models.Decision
	safetyDecisions []models.Decision
	events          []models.Event
	chunksByEvent   map[string][]models.Chunk
	capsules        []models.Capsule
}

func (f *fakeStore) ListActiveDecisions(_ context.Context, _ string, _ store.DecisionListFilters, _ int) ([]models.Decision, error) {
	return f.decisions, nil
}

func (f *fakeStore) ListSafetyCriticalDecisions(_ context.Context, _, _, _ string) ([]models.Decision, error) {
	return f.safetyDecisions, nil
}

func (f *fakeStore) ListEventsByKind(_ context.Context, _, _ string, kind models.EventKind, _ int) ([]models.Event, error) {
	var out []models.Event
	for _, e := range f.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) ListRecentEvents(_ context.Context, _, _ string, _ int) ([]models.Event, error) {
	return f.events, nil
}

func (f *fakeStore) GetChunksForEvent(_ context.Context, _, eventID string) ([]models.Chunk, error) {
	return f.chunksByEvent[eventID], nil
}

func (f *fakeStore) ListActiveCapsulesForAgent(_ context.Context, _, _ string) ([]models.Capsule, error) {
	return f.capsules, nil
}

type fakeEditLister struct{}

func (fakeEditLister) EditsFor(_ context.Context, _ string, _ models.EditTargetType, _ string) ([]models.MemoryEdit, error) {
	return nil, nil
}

type fakeChunkStore struct{}

func (fakeChunkStore) SearchChunks(_ context.Context, _ string, _ []string, _ store.ChunkFilters, _, _ int) ([]store.RankedChunk, error) {
	return nil, nil
}

func testConfig() *config.Config {
	return &config.Config{
		SectionBudgets: map[models.Mode]config.ModeBudgets{
			models.ModeGeneral: {
				Identity: 200, Rules: 200, TaskState: 200, RecentWindow: 200,
				RelevantDecisions: 200, RetrievedEvidence: 200, Capsules: 200,
			},
		},
		IntentToMode: map[string]models.Mode{},
		Retrieval:    config.RetrievalConfig{CandidatePoolMax: 2000, ScoredMax: 200, RecencyTauDays: 14, Alpha: 0.6, Beta: 0.3, Gamma: 0.1},
	}
}

func newTestService(fs *fakeStore) *orchestrator.Service {
	retrievalSvc := retrieval.New(fakeChunkStore{}, fakeEditLister{}, config.RetrievalConfig{CandidatePoolMax: 2000, ScoredMax: 200, RecencyTauDays: 14, Alpha: 0.6, Beta: 0.3, Gamma: 0.1}, nil)
	return orchestrator.New(fs, fakeEditLister{}, retrievalSvc, testConfig(), nil)
}

func TestBuildAssemblesSectionsInFixedOrder(t *testing.T) {
	fs := &fakeStore{
		decisions: []models.Decision{{DecisionID: "dec_1", Decision: "use postgres", Status: models.DecisionActive}},
		events: []models.Event{
			{EventID: "evt_1", Kind: models.KindTaskUpdate, Sensitivity: models.SensitivityNone, Channel: models.ChannelPrivate,
				Content: models.EventContent{TaskID: "t1", Status: "in_progress", Note: "working on it"}, TS: time.Now()},
		},
	}
	svc := newTestService(fs)

	acb, err := svc.Build(context.Background(), models.Principal{TenantID: "tenant-1"}, orchestrator.Request{
		SessionID: "sess-1", Channel: models.ChannelPrivate, MaxTokens: 1400,
	})
	require.NoError(t, err)
	require.Len(t, acb.Sections, len(models.AssemblyOrder))
	for i, name := range models.AssemblyOrder {
		require.Equal(t, name, acb.Sections[i].Name)
	}
	require.Equal(t, models.ModeGeneral, acb.Mode)
}

func TestBuildIncludesRulesSectionDecision(t *testing.T) {
	fs := &fakeStore{
		decisions: []models.Decision{{DecisionID: "dec_1", Decision: "always verify tenant scope", Status: models.DecisionActive}},
	}
	svc := newTestService(fs)

	acb, err := svc.Build(context.Background(), models.Principal{TenantID: "tenant-1"}, orchestrator.Request{
		SessionID: "sess-1", Channel: models.ChannelPrivate, MaxTokens: 1400,
	})
	require.NoError(t, err)
	rules := acb.Section(models.SectionRules)
	require.NotNil(t, rules)
	require.Len(t, rules.Items, 1)
	require.Equal(t, "dec_1", rules.Items[0].DecisionID)
}

func TestBuildPullsSafetyCriticalDecisionIntoRulesEvenWhenNotInActiveList(t *testing.T) {
	fs := &fakeStore{
		safetyDecisions: []models.Decision{{DecisionID: "dec_safety", Decision: "never delete prod data", Status: models.DecisionActive, Tags: []string{"safety"}}},
	}
	svc := newTestService(fs)

	acb, err := svc.Build(context.Background(), models.Principal{TenantID: "tenant-1"}, orchestrator.Request{
		SessionID: "sess-1", Channel: models.ChannelPrivate, MaxTokens: 1400,
	})
	require.NoError(t, err)
	rules := acb.Section(models.SectionRules)
	require.NotNil(t, rules)
	found := false
	for _, it := range rules.Items {
		if it.DecisionID == "dec_safety" {
			found = true
		}
	}
	require.True(t, found, "safety-critical decision must always be present in rules")
}

func TestBuildOmitsTaskStateForDoneEvents(t *testing.T) {
	fs := &fakeStore{
		events: []models.Event{
			{EventID: "evt_done", Kind: models.KindTaskUpdate, Sensitivity: models.SensitivityNone,
				Content: models.EventContent{TaskID: "t1", Status: "done"}, TS: time.Now()},
		},
	}
	svc := newTestService(fs)

	acb, err := svc.Build(context.Background(), models.Principal{TenantID: "tenant-1"}, orchestrator.Request{
		SessionID: "sess-1", Channel: models.ChannelPrivate, MaxTokens: 1400,
	})
	require.NoError(t, err)
	taskState := acb.Section(models.SectionTaskState)
	require.NotNil(t, taskState)
	require.Empty(t, taskState.Items)
}

func TestBuildEvictsRulesOwnLowestPriorityItemToForceInSafetyDecision(t *testing.T) {
	// rules and relevant_decisions both fill their 200-token budget with
	// dec_normal; with MaxTokens set to exactly what normal packing
	// consumes, the safety-critical decision has zero overall headroom
	// and must evict dec_normal out of rules itself to fit.
	fs := &fakeStore{
		decisions:       []models.Decision{{DecisionID: "dec_normal", Decision: strings.Repeat("x", 800), Status: models.DecisionActive}},
		safetyDecisions: []models.Decision{{DecisionID: "dec_safety", Decision: "never delete prod data", Status: models.DecisionActive, Tags: []string{"safety"}}},
	}
	svc := newTestService(fs)

	acb, err := svc.Build(context.Background(), models.Principal{TenantID: "tenant-1"}, orchestrator.Request{
		SessionID: "sess-1", Channel: models.ChannelPrivate, MaxTokens: 440,
	})
	require.NoError(t, err)

	rules := acb.Section(models.SectionRules)
	require.NotNil(t, rules)
	var foundSafety, foundNormal bool
	for _, it := range rules.Items {
		switch it.DecisionID {
		case "dec_safety":
			foundSafety = true
		case "dec_normal":
			foundNormal = true
		}
	}
	require.True(t, foundSafety, "safety-critical decision must be force-included even with zero headroom")
	require.False(t, foundNormal, "dec_normal must be evicted from rules to make room, not retrieved_evidence")

	evidence := acb.Section(models.SectionRetrievedEvidence)
	require.NotNil(t, evidence)
	require.Empty(t, evidence.Items, "retrieved_evidence had nothing to begin with and must not be touched")

	var evictedRules bool
	for _, om := range acb.Omissions {
		if om.Section == models.SectionRules && om.Reason == models.ReasonBudgetExhaustedSticky {
			evictedRules = true
		}
		require.NotEqual(t, models.SectionRetrievedEvidence, om.Section, "no eviction should have been attempted against retrieved_evidence")
	}
	require.True(t, evictedRules, "eviction of dec_normal from rules must be recorded as an omission")

	require.LessOrEqual(t, acb.TokenUsedEst, acb.BudgetTokens)
}

func TestBuildSetsProvenanceFromIntentAndMode(t *testing.T) {
	svc := newTestService(&fakeStore{})

	acb, err := svc.Build(context.Background(), models.Principal{TenantID: "tenant-1"}, orchestrator.Request{
		SessionID: "sess-1", Channel: models.ChannelPrivate, QueryText: "why did we pick postgres", MaxTokens: 1400,
	})
	require.NoError(t, err)
	require.Equal(t, models.ModeGeneral, acb.Provenance.Mode)
	require.Equal(t, []string{"why", "did", "we", "pick", "postgres"}, acb.Provenance.QueryTerms)
	require.Contains(t, acb.Provenance.SensitivityAllowed, models.SensitivityNone)
}
