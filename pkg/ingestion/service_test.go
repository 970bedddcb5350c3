package ingestion_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/agentmem/pkg/apperr"
	"github.com/codeready-toolchain/agentmem/pkg/config"
	"github.com/codeready-toolchain/agentmem/pkg/ingestion"
	"github.com/codeready-toolchain/agentmem/pkg/masking"
	"github.com/codeready-toolchain/agentmem/pkg/models"
)

type fakeStore struct {
	events []models.Event
	chunks [][]models.Chunk
	audits []models.AuditEvent
}

func (f *fakeStore) InsertEventWithChunks(_ context.Context, evt models.Event, chunks []models.Chunk, _ *models.Artifact) error {
	f.events = append(f.events, evt)
	f.chunks = append(f.chunks, chunks)
	return nil
}

func (f *fakeStore) AppendAudit(_ context.Context, e models.AuditEvent) error {
	f.audits = append(f.audits, e)
	return nil
}

func testMasking(policy config.SecretPolicy) *masking.Service {
	cfg := config.MaskingConfig{
		Patterns: map[string]config.MaskingPattern{
			"api_key": {Pattern: `(?i)api_key\s*=\s*\S+`, Replacement: "api_key=[REDACTED]"},
		},
		PatternGroups: map[string][]string{"secrets": {"api_key"}},
	}
	return masking.New(cfg, policy, nil)
}

func principal() models.Principal {
	return models.Principal{TenantID: "tenant-1", UserID: "user-1"}
}

func TestRecordEventValidatesRequiredFields(t *testing.T) {
	fs := &fakeStore{}
	svc := ingestion.New(fs, testMasking(config.SecretPolicyRedact), 65536, nil)

	_, err := svc.RecordEvent(context.Background(), principal(), ingestion.RecordEventRequest{
		Channel: models.ChannelPrivate,
		Actor:   models.Actor{Type: models.ActorHuman, ID: "u"},
		Kind:    models.KindMessage,
	})
	require.True(t, apperr.IsValidation(err))
}

func TestRecordEventExtractsOneChunkForMessage(t *testing.T) {
	fs := &fakeStore{}
	svc := ingestion.New(fs, testMasking(config.SecretPolicyRedact), 65536, nil)

	res, err := svc.RecordEvent(context.Background(), principal(), ingestion.RecordEventRequest{
		SessionID: "sess-1",
		Channel:   models.ChannelPrivate,
		Actor:     models.Actor{Type: models.ActorHuman, ID: "u"},
		Kind:      models.KindMessage,
		Content:   models.EventContent{Text: "hello there"},
	})
	require.NoError(t, err)
	require.Len(t, res.ChunkIDs, 1)
	require.Len(t, fs.chunks, 1)
	require.Equal(t, "hello there", fs.chunks[0][0].Text)
	require.Len(t, fs.audits, 1)
	require.Equal(t, models.EventTypeDataWrite, fs.audits[0].EventType)
}

func TestRecordEventCreatesZeroChunksForEmptyExtractedText(t *testing.T) {
	fs := &fakeStore{}
	svc := ingestion.New(fs, testMasking(config.SecretPolicyRedact), 65536, nil)

	res, err := svc.RecordEvent(context.Background(), principal(), ingestion.RecordEventRequest{
		SessionID: "sess-1",
		Channel:   models.ChannelPrivate,
		Actor:     models.Actor{Type: models.ActorAgent, ID: "a"},
		Kind:      models.KindToolCall,
		Content:   models.EventContent{Tool: "search"},
	})
	require.NoError(t, err)
	require.Empty(t, res.ChunkIDs)
	require.Len(t, fs.events, 1)
}

func TestRecordEventRedactsSecretsUnderRedactPolicy(t *testing.T) {
	fs := &fakeStore{}
	svc := ingestion.New(fs, testMasking(config.SecretPolicyRedact), 65536, nil)

	_, err := svc.RecordEvent(context.Background(), principal(), ingestion.RecordEventRequest{
		SessionID: "sess-1",
		Channel:   models.ChannelPrivate,
		Actor:     models.Actor{Type: models.ActorHuman, ID: "u"},
		Kind:      models.KindMessage,
		Content:   models.EventContent{Text: "api_key=sk-abc123"},
	})
	require.NoError(t, err)
	require.Contains(t, fs.events[0].Content.Text, "[REDACTED]")
	require.NotContains(t, fs.events[0].Content.Text, "sk-abc123")
	require.Equal(t, 1, fs.audits[0].Details["redactions"])
}

func TestRecordEventRejectsSecretUnderRejectPolicy(t *testing.T) {
	fs := &fakeStore{}
	svc := ingestion.New(fs, testMasking(config.SecretPolicyReject), 65536, nil)

	_, err := svc.RecordEvent(context.Background(), principal(), ingestion.RecordEventRequest{
		SessionID: "sess-1",
		Channel:   models.ChannelPrivate,
		Actor:     models.Actor{Type: models.ActorHuman, ID: "u"},
		Kind:      models.KindMessage,
		Content:   models.EventContent{Text: "api_key=sk-abc123"},
	})
	require.ErrorIs(t, err, apperr.SensitiveContent)
	require.Empty(t, fs.events)
}

func TestRecordEventOffloadsOversizedToolResultToArtifact(t *testing.T) {
	fs := &fakeStore{}
	svc := ingestion.New(fs, testMasking(config.SecretPolicyRedact), 10, nil)

	full := strings.Repeat("x", 100)
	_, err := svc.RecordEvent(context.Background(), principal(), ingestion.RecordEventRequest{
		SessionID: "sess-1",
		Channel:   models.ChannelPrivate,
		Actor:     models.Actor{Type: models.ActorTool, ID: "t"},
		Kind:      models.KindToolResult,
		Content:   models.EventContent{ExcerptText: full},
	})
	require.NoError(t, err)
	require.True(t, fs.events[0].Content.Truncated)
	require.NotEmpty(t, fs.events[0].Content.ArtifactID)
	require.LessOrEqual(t, len(fs.events[0].Content.ExcerptText), 10)
}

func TestRecordEventDerivesImportanceFromKindAndPinnedTag(t *testing.T) {
	fs := &fakeStore{}
	svc := ingestion.New(fs, testMasking(config.SecretPolicyRedact), 65536, nil)

	_, err := svc.RecordEvent(context.Background(), principal(), ingestion.RecordEventRequest{
		SessionID: "sess-1",
		Channel:   models.ChannelPrivate,
		Actor:     models.Actor{Type: models.ActorHuman, ID: "u"},
		Kind:      models.KindDecision,
		Content:   models.EventContent{Decision: "use postgres", Rationale: []string{"already in stack"}},
	})
	require.NoError(t, err)
	require.Equal(t, models.ImportanceDecision, fs.chunks[0][0].Importance)

	fs2 := &fakeStore{}
	svc2 := ingestion.New(fs2, testMasking(config.SecretPolicyRedact), 65536, nil)
	_, err = svc2.RecordEvent(context.Background(), principal(), ingestion.RecordEventRequest{
		SessionID: "sess-1",
		Channel:   models.ChannelPrivate,
		Actor:     models.Actor{Type: models.ActorHuman, ID: "u"},
		Kind:      models.KindMessage,
		Tags:      []string{"pinned"},
		Content:   models.EventContent{Text: "remember this"},
	})
	require.NoError(t, err)
	require.Equal(t, models.ImportancePinned, fs2.chunks[0][0].Importance)
}
