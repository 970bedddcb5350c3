package audit_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/agentmem/pkg/apperr"
	"github.com/codeready-toolchain/agentmem/pkg/audit"
	"github.com/codeready-toolchain/agentmem/pkg/models"
)

type fakeStore struct {
	events []models.AuditEvent
}

func (f *fakeStore) AppendAudit(_ context.Context, e models.AuditEvent) error {
	f.events = append(f.events, e)
	return nil
}

func (f *fakeStore) ListAudit(_ context.Context, tenantID string, limit int) ([]models.AuditEvent, error) {
	var out []models.AuditEvent
	for i := len(f.events) - 1; i >= 0 && len(out) < limit; i-- {
		if f.events[i].TenantID == tenantID {
			out = append(out, f.events[i])
		}
	}
	return out, nil
}

func TestRecordStampsTenantFromPrincipal(t *testing.T) {
	fs := &fakeStore{}
	svc := audit.New(fs, nil)

	err := svc.Record(context.Background(), models.Principal{TenantID: "t1", UserID: "u1"}, models.AuditEvent{
		EventType:    models.EventTypeDataWrite,
		ResourceType: "handoff",
		Action:       "create_handoff",
		Outcome:      "success",
	})
	require.NoError(t, err)
	require.Len(t, fs.events, 1)
	require.Equal(t, "t1", fs.events[0].TenantID)
	require.Equal(t, "u1", fs.events[0].UserID)
}

func TestListRequiresAdminRole(t *testing.T) {
	fs := &fakeStore{}
	svc := audit.New(fs, nil)

	_, err := svc.List(context.Background(), models.Principal{TenantID: "t1", Roles: []string{"member"}}, 10)
	require.ErrorIs(t, err, apperr.Forbidden)
}

func TestListReturnsOnlyRequestingTenantEvents(t *testing.T) {
	fs := &fakeStore{events: []models.AuditEvent{
		{TenantID: "t1", EventType: models.EventTypeDataWrite},
		{TenantID: "t2", EventType: models.EventTypeDataWrite},
	}}
	svc := audit.New(fs, nil)

	events, err := svc.List(context.Background(), models.Principal{TenantID: "t1", Roles: []string{models.RoleAdmin}}, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "t1", events[0].TenantID)
}
