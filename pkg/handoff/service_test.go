package handoff_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/agentmem/pkg/apperr"
	"github.com/codeready-toolchain/agentmem/pkg/handoff"
	"github.com/codeready-toolchain/agentmem/pkg/models"
)

type fakeStore struct {
	handoffs        []models.Handoff
	activeDecisions int
	knowledgeNotes  int
	audits          []models.AuditEvent
}

func (f *fakeStore) CreateHandoff(_ context.Context, h models.Handoff) error {
	h.CreatedAt = time.Now()
	f.handoffs = append(f.handoffs, h)
	return nil
}

func (f *fakeStore) GetLastHandoff(_ context.Context, _, withWhom string) (*models.Handoff, error) {
	for i := len(f.handoffs) - 1; i >= 0; i-- {
		h := f.handoffs[i]
		if withWhom == "" || h.WithWhom == withWhom {
			return &h, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetIdentityThread(_ context.Context, _ string) ([]models.Handoff, error) {
	var out []models.Handoff
	for i := len(f.handoffs) - 1; i >= 0; i-- {
		if f.handoffs[i].Becoming != "" {
			out = append(out, f.handoffs[i])
		}
	}
	return out, nil
}

func (f *fakeStore) CountActiveDecisions(_ context.Context, _ string) (int, error) {
	return f.activeDecisions, nil
}

func (f *fakeStore) CountKnowledgeNotes(_ context.Context, _ string) (int, error) {
	return f.knowledgeNotes, nil
}

func (f *fakeStore) AppendAudit(_ context.Context, e models.AuditEvent) error {
	f.audits = append(f.audits, e)
	return nil
}

func principal() models.Principal {
	return models.Principal{TenantID: "tenant-1", UserID: "agent-1"}
}

func TestCreateHandoffWritesFullCompressionAndAudits(t *testing.T) {
	fs := &fakeStore{}
	svc := handoff.New(fs, nil)

	id, err := svc.CreateHandoff(context.Background(), principal(), handoff.CreateHandoffRequest{
		SessionID: "sess-1", Experienced: "shipped the retrieval engine", Significance: 0.8,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Len(t, fs.handoffs, 1)
	require.Equal(t, models.CompressionFull, fs.handoffs[0].CompressionLevel)
	require.Len(t, fs.audits, 1)
	require.Equal(t, models.EventTypeDataWrite, fs.audits[0].EventType)
}

func TestCreateHandoffRejectsEmptyBody(t *testing.T) {
	svc := handoff.New(&fakeStore{}, nil)

	_, err := svc.CreateHandoff(context.Background(), principal(), handoff.CreateHandoffRequest{SessionID: "sess-1"})
	require.True(t, apperr.IsValidation(err))
}

func TestGetIdentityThreadExcludesHandoffsWithoutBecoming(t *testing.T) {
	fs := &fakeStore{handoffs: []models.Handoff{
		{HandoffID: "handoff_1", Becoming: "", CreatedAt: time.Now()},
		{HandoffID: "handoff_2", Becoming: "I notice I prefer small, verifiable steps", CreatedAt: time.Now()},
	}}
	svc := handoff.New(fs, nil)

	thread, err := svc.GetIdentityThread(context.Background(), principal())
	require.NoError(t, err)
	require.Len(t, thread, 1)
	require.Equal(t, "handoff_2", thread[0].HandoffID)
}

func TestWakeUpComposesGreetingFromLastHandoffAndIdentityThread(t *testing.T) {
	fs := &fakeStore{
		handoffs: []models.Handoff{
			{HandoffID: "handoff_1", WithWhom: "dana", Story: "we finished the overlay package", Becoming: "I work best in small increments"},
		},
		activeDecisions: 3,
		knowledgeNotes:  2,
	}
	svc := handoff.New(fs, nil)

	result, err := svc.WakeUp(context.Background(), principal(), "dana")
	require.NoError(t, err)
	require.NotNil(t, result.LastHandoff)
	require.Equal(t, "handoff_1", result.LastHandoff.HandoffID)
	require.Len(t, result.IdentityThread, 1)
	require.Equal(t, 3, result.RecentDecisionsCount)
	require.Equal(t, 2, result.KnowledgeNotesCount)
	require.Contains(t, result.GreetingContext, "dana")
	require.Contains(t, result.GreetingContext, "we finished the overlay package")
	require.Contains(t, result.GreetingContext, "I work best in small increments")
}

func TestWakeUpHandlesNoPriorHandoff(t *testing.T) {
	svc := handoff.New(&fakeStore{}, nil)

	result, err := svc.WakeUp(context.Background(), principal(), "")
	require.NoError(t, err)
	require.Nil(t, result.LastHandoff)
	require.Empty(t, result.IdentityThread)
}
