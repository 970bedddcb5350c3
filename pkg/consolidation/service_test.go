package consolidation_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/agentmem/pkg/apperr"
	"github.com/codeready-toolchain/agentmem/pkg/config"
	"github.com/codeready-toolchain/agentmem/pkg/consolidation"
	"github.com/codeready-toolchain/agentmem/pkg/models"
)

type fakeStore struct {
	handoffs           []models.Handoff
	notes              []models.KnowledgeNote
	reflections        []models.Reflection
	jobs               []models.Job
	decisionsOlderThan int
	locked             bool
	running            *models.Job
}

func (f *fakeStore) TryLockTenantJob(_ context.Context, _, _ string) (bool, func(), error) {
	if f.locked {
		return false, func() {}, nil
	}
	f.locked = true
	return true, func() { f.locked = false }, nil
}

func (f *fakeStore) GetRunningJob(_ context.Context, _ models.JobType, _ string) (*models.Job, error) {
	return f.running, nil
}

func (f *fakeStore) CreateJob(_ context.Context, j models.Job) error {
	f.jobs = append(f.jobs, j)
	return nil
}

func (f *fakeStore) CompleteJob(_ context.Context, jobID string, status models.JobStatus, processed, affected int, completedAt time.Time, jobErr string) error {
	for i := range f.jobs {
		if f.jobs[i].JobID == jobID {
			f.jobs[i].Status = status
			f.jobs[i].ItemsProcessed = processed
			f.jobs[i].ItemsAffected = affected
			f.jobs[i].CompletedAt = &completedAt
			f.jobs[i].Error = jobErr
		}
	}
	return nil
}

func (f *fakeStore) ListHandoffsForCompression(_ context.Context, tenantID string, fromLevel models.CompressionLevel, _ time.Time, limit int) ([]models.Handoff, error) {
	var out []models.Handoff
	for _, h := range f.handoffs {
		if h.TenantID == tenantID && h.CompressionLevel == fromLevel {
			out = append(out, h)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateHandoffCompression(_ context.Context, handoffID string, level models.CompressionLevel, experienced, noticed, learned, remember, story, becoming string) error {
	for i := range f.handoffs {
		if f.handoffs[i].HandoffID == handoffID {
			f.handoffs[i].CompressionLevel = level
			f.handoffs[i].Experienced = experienced
			f.handoffs[i].Noticed = noticed
			f.handoffs[i].Learned = learned
			f.handoffs[i].Remember = remember
			f.handoffs[i].Story = story
			f.handoffs[i].Becoming = becoming
		}
	}
	return nil
}

func (f *fakeStore) MarkHandoffIntegrated(_ context.Context, handoffID, noteID string) error {
	for i := range f.handoffs {
		if f.handoffs[i].HandoffID == handoffID {
			f.handoffs[i].IntegratedInto = noteID
		}
	}
	return nil
}

func (f *fakeStore) GetIdentityThread(_ context.Context, tenantID string) ([]models.Handoff, error) {
	var out []models.Handoff
	for _, h := range f.handoffs {
		if h.TenantID == tenantID && h.Becoming != "" {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateKnowledgeNote(_ context.Context, n models.KnowledgeNote) error {
	f.notes = append(f.notes, n)
	return nil
}

func (f *fakeStore) CreateReflection(_ context.Context, r models.Reflection) error {
	f.reflections = append(f.reflections, r)
	return nil
}

func (f *fakeStore) ArchiveDecisionsOlderThan(_ context.Context, _ string, _ time.Time, limit int) (int, error) {
	n := f.decisionsOlderThan
	if n > limit {
		n = limit
	}
	f.decisionsOlderThan -= n
	return n, nil
}

func (f *fakeStore) ListActiveTenants(_ context.Context) ([]string, error) {
	return []string{"t1"}, nil
}

type fakeSummarizer struct{}

func (fakeSummarizer) Summarize(_ context.Context, text string, targetTokens int, mode consolidation.SummaryMode) (string, error) {
	return fmt.Sprintf("[%s/%d] %s", mode, targetTokens, text), nil
}

func testCfg() config.ConsolidationConfig {
	return config.ConsolidationConfig{
		Enabled:                    true,
		SummaryAfterDays:           30,
		QuickRefAfterDays:          90,
		IntegratedAfterDays:        180,
		ArchiveAfterDays:           60,
		IdentitySynthesisMinBucket: 2,
		BatchSize:                  10,
		HandoffsPerRun:             config.HandoffsPerRun{Daily: 0, Weekly: 0, Monthly: 0},
		Schedule:                   map[string]string{"daily": "0 2 * * *"},
	}
}

func TestRunConsolidationCompressesEligibleHandoffs(t *testing.T) {
	fs := &fakeStore{
		handoffs: []models.Handoff{
			{HandoffID: "h1", TenantID: "t1", CompressionLevel: models.CompressionFull, Story: "story one", Becoming: "becoming one"},
			{HandoffID: "h2", TenantID: "t1", CompressionLevel: models.CompressionFull, Story: "story two", Becoming: "becoming two"},
			{HandoffID: "h3", TenantID: "t1", CompressionLevel: models.CompressionSummary, Story: "already summarized"},
		},
	}
	svc := consolidation.New(fs, fakeSummarizer{}, testCfg(), nil)

	job, err := svc.RunConsolidation(context.Background(), "t1", models.JobHandoffCompression)
	require.NoError(t, err)
	require.Equal(t, models.JobSucceeded, job.Status)
	require.Equal(t, 2, job.ItemsProcessed)

	require.Equal(t, models.CompressionSummary, fs.handoffs[0].CompressionLevel)
	require.Equal(t, models.CompressionSummary, fs.handoffs[1].CompressionLevel)
	require.Contains(t, fs.handoffs[0].Story, "summary")
	require.Equal(t, "becoming one", fs.handoffs[0].Becoming, "becoming must survive compression unchanged")
	require.Empty(t, fs.handoffs[0].Experienced)
}

func TestRunConsolidationRejectsOverlappingRunsForSameTenant(t *testing.T) {
	fs := &fakeStore{running: &models.Job{JobID: "running-job"}}
	svc := consolidation.New(fs, fakeSummarizer{}, testCfg(), nil)

	_, err := svc.RunConsolidation(context.Background(), "t1", models.JobDaily)
	require.Error(t, err)
	require.ErrorIs(t, err, apperr.Conflict)
}

func TestRunConsolidationArchivesOldDecisions(t *testing.T) {
	fs := &fakeStore{decisionsOlderThan: 25}
	svc := consolidation.New(fs, fakeSummarizer{}, testCfg(), nil)

	job, err := svc.RunConsolidation(context.Background(), "t1", models.JobDecisionArchival)
	require.NoError(t, err)
	require.Equal(t, 25, job.ItemsAffected)
	require.Equal(t, 0, fs.decisionsOlderThan)
}

func TestRunConsolidationSynthesizesIdentityFromThemeBuckets(t *testing.T) {
	fs := &fakeStore{
		handoffs: []models.Handoff{
			{HandoffID: "h1", TenantID: "t1", CompressionLevel: models.CompressionQuickRef, Becoming: "debugging taught me patience"},
			{HandoffID: "h2", TenantID: "t1", CompressionLevel: models.CompressionQuickRef, Becoming: "debugging is where I feel sharpest"},
			{HandoffID: "h3", TenantID: "t1", CompressionLevel: models.CompressionQuickRef, Becoming: "solo reflection today"},
		},
	}
	svc := consolidation.New(fs, fakeSummarizer{}, testCfg(), nil)

	job, err := svc.RunConsolidation(context.Background(), "t1", models.JobIdentitySynthesis)
	require.NoError(t, err)
	require.Equal(t, models.JobSucceeded, job.Status)

	require.Len(t, fs.notes, 1)
	require.Equal(t, []string{"h1", "h2"}, fs.notes[0].SourceHandoffs)
	require.Equal(t, fs.notes[0].NoteID, fs.handoffs[0].IntegratedInto)
	require.Equal(t, fs.notes[0].NoteID, fs.handoffs[1].IntegratedInto)
	require.Empty(t, fs.handoffs[2].IntegratedInto, "bucket below IdentitySynthesisMinBucket stays unmerged")
	require.Len(t, fs.reflections, 1)
}

func TestRunConsolidationFailsClosedWhenLockUnavailable(t *testing.T) {
	fs := &fakeStore{locked: true}
	svc := consolidation.New(fs, fakeSummarizer{}, testCfg(), nil)

	_, err := svc.RunConsolidation(context.Background(), "t1", models.JobDaily)
	require.Error(t, err)
}
