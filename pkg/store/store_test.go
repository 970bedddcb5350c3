package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/agentmem/pkg/apperr"
	"github.com/codeready-toolchain/agentmem/pkg/ids"
	"github.com/codeready-toolchain/agentmem/pkg/models"
	"github.com/codeready-toolchain/agentmem/pkg/store"
	"github.com/codeready-toolchain/agentmem/test/util"
)

func newTestStore(t *testing.T) *store.Store {
	db := util.SetupTestDatabase(t)
	return store.New(db, nil)
}

func TestInsertEventWithChunksAndGetEvent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	eventID := ids.New(ids.PrefixEvent)
	evt := models.Event{
		EventID:     eventID,
		TenantID:    "tenant-a",
		SessionID:   "sess-1",
		Channel:     models.ChannelPrivate,
		Sensitivity: models.SensitivityLow,
		Tags:        []string{"pinned"},
		Actor:       models.Actor{Type: models.ActorHuman, ID: "user-1"},
		Kind:        models.KindMessage,
		TS:          time.Now().UTC(),
		Content:     models.EventContent{Text: "hello world"},
	}
	chunk := models.Chunk{
		ChunkID:    ids.New(ids.PrefixChunk),
		EventID:    eventID,
		TenantID:   evt.TenantID,
		SessionID:  evt.SessionID,
		Channel:    evt.Channel,
		Sensitivity: evt.Sensitivity,
		Kind:       evt.Kind,
		Text:       "hello world",
		TokenEst:   2,
		Importance: models.ImportancePinned,
		TS:         evt.TS,
	}

	require.NoError(t, s.InsertEventWithChunks(ctx, evt, []models.Chunk{chunk}, nil))

	got, err := s.GetEvent(ctx, evt.TenantID, eventID)
	require.NoError(t, err)
	require.Equal(t, "hello world", got.Content.Text)
	require.Equal(t, models.ChannelPrivate, got.Channel)

	_, err = s.GetEvent(ctx, "tenant-b", eventID)
	require.ErrorIs(t, err, apperr.NotFound)
}

func TestSearchChunksFiltersByChannelAndSensitivity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tenantID := "tenant-search"
	for i, text := range []string{"deploy the service to production", "unrelated note about lunch"} {
		eventID := ids.New(ids.PrefixEvent)
		evt := models.Event{
			EventID: eventID, TenantID: tenantID, SessionID: "sess-1",
			Channel: models.ChannelPrivate, Sensitivity: models.SensitivityLow,
			Actor: models.Actor{Type: models.ActorAgent, ID: "agent-1"},
			Kind:  models.KindMessage, TS: time.Now().UTC().Add(time.Duration(i) * time.Second),
			Content: models.EventContent{Text: text},
		}
		chunk := models.Chunk{
			ChunkID: ids.New(ids.PrefixChunk), EventID: eventID, TenantID: tenantID, SessionID: "sess-1",
			Channel: evt.Channel, Sensitivity: evt.Sensitivity, Kind: evt.Kind,
			Text: text, TokenEst: len(text) / 4, Importance: models.ImportanceDefault, TS: evt.TS,
		}
		require.NoError(t, s.InsertEventWithChunks(ctx, evt, []models.Chunk{chunk}, nil))
	}

	results, err := s.SearchChunks(ctx, tenantID, []string{"deploy"}, store.ChunkFilters{
		Channel:            models.ChannelPrivate,
		SensitivityAllowed: models.SensitivityAllowedFor(models.ChannelPrivate),
	}, 2000, 200)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Contains(t, results[0].Chunk.Text, "deploy")
}

func TestPurgeTenantRemovesAllRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tenantID := "tenant-purge"
	eventID := ids.New(ids.PrefixEvent)
	evt := models.Event{
		EventID: eventID, TenantID: tenantID, SessionID: "sess-1",
		Channel: models.ChannelPrivate, Sensitivity: models.SensitivityLow,
		Actor: models.Actor{Type: models.ActorHuman, ID: "u"}, Kind: models.KindMessage,
		TS: time.Now().UTC(), Content: models.EventContent{Text: "x"},
	}
	require.NoError(t, s.InsertEventWithChunks(ctx, evt, nil, nil))

	require.NoError(t, s.PurgeTenant(ctx, tenantID))

	_, err := s.GetEvent(ctx, tenantID, eventID)
	require.Error(t, err)
}
