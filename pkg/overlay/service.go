package overlay

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/agentmem/pkg/apperr"
	"github.com/codeready-toolchain/agentmem/pkg/ids"
	"github.com/codeready-toolchain/agentmem/pkg/models"
)

// editStore is the subset of *store.Store the overlay service needs.
type editStore interface {
	CreateEdit(ctx context.Context, e models.MemoryEdit) error
	GetEdit(ctx context.Context, tenantID, editID string) (*models.MemoryEdit, error)
	ApproveEdit(ctx context.Context, tenantID, editID, approvedBy string, at time.Time) error
	ListEdits(ctx context.Context, tenantID string, targetType models.EditTargetType, targetID string) ([]models.MemoryEdit, error)
	ListEditsForTenant(ctx context.Context, tenantID string) ([]models.MemoryEdit, error)
	AppendAudit(ctx context.Context, e models.AuditEvent) error
}

// Service implements propose_edit / approve_edit / list_edits (§4.3, §6).
type Service struct {
	store editStore
	log   *slog.Logger
}

func New(store editStore, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, log: log}
}

// ProposeEdit validates the edit shape and stores it. Ops that
// RequiresApproval land as pending; all others are stored already
// approved+applied (§4.3).
func (s *Service) ProposeEdit(ctx context.Context, principal models.Principal, targetType models.EditTargetType, targetID string, op models.EditOp, reason string, patch models.EditPatch) (string, error) {
	if !targetType.Valid() {
		return "", apperr.NewValidation("target_type", "unrecognized value")
	}
	if targetID == "" {
		return "", apperr.NewValidation("target_id", "required")
	}
	if !op.Valid() {
		return "", apperr.NewValidation("op", "unrecognized value")
	}

	now := time.Now().UTC()
	edit := models.MemoryEdit{
		EditID:     ids.New(ids.PrefixEdit),
		TenantID:   principal.TenantID,
		TargetType: targetType,
		TargetID:   targetID,
		Op:         op,
		Reason:     reason,
		Patch:      patch,
		ProposedBy: principal.UserID,
	}
	if op.RequiresApproval() {
		edit.Status = models.EditPending
	} else {
		edit.Status = models.EditApproved
		edit.ApprovedBy = principal.UserID
		edit.AppliedAt = &now
	}

	if err := s.store.CreateEdit(ctx, edit); err != nil {
		return "", err
	}

	if err := s.store.AppendAudit(ctx, models.AuditEvent{
		TS: now, TenantID: principal.TenantID, UserID: principal.UserID,
		EventType: models.EventTypeEditPropose, ResourceType: string(targetType),
		ResourceID: targetID, Action: "propose_edit", Outcome: "success",
		Details: map[string]any{"edit_id": edit.EditID, "op": string(op), "status": string(edit.Status)},
	}); err != nil {
		s.log.Error("failed to append audit record for propose_edit", "edit_id", edit.EditID, "error", err)
	}

	return edit.EditID, nil
}

// ApproveEdit requires the approver role and transitions a pending
// edit to approved+applied (§4.3 approval policy).
func (s *Service) ApproveEdit(ctx context.Context, principal models.Principal, editID string) error {
	now := time.Now().UTC()
	if !principal.HasRole(models.RoleApprover) {
		if err := s.store.AppendAudit(ctx, models.AuditEvent{
			TS: now, TenantID: principal.TenantID, UserID: principal.UserID,
			EventType: models.EventTypeEditApprove, ResourceType: "edit",
			ResourceID: editID, Action: "approve_edit", Outcome: "forbidden",
		}); err != nil {
			s.log.Error("failed to append audit record for approve_edit", "edit_id", editID, "error", err)
		}
		return apperr.Forbidden
	}
	if err := s.store.ApproveEdit(ctx, principal.TenantID, editID, principal.UserID, now); err != nil {
		return err
	}
	if err := s.store.AppendAudit(ctx, models.AuditEvent{
		TS: now, TenantID: principal.TenantID, UserID: principal.UserID,
		EventType: models.EventTypeEditApprove, ResourceType: "edit",
		ResourceID: editID, Action: "approve_edit", Outcome: "success",
	}); err != nil {
		s.log.Error("failed to append audit record for approve_edit", "edit_id", editID, "error", err)
	}
	return nil
}

// ListEdits returns every edit for the tenant (§6 list_edits).
func (s *Service) ListEdits(ctx context.Context, principal models.Principal) ([]models.MemoryEdit, error) {
	return s.store.ListEditsForTenant(ctx, principal.TenantID)
}

// EditsFor returns the approved edits targeting one item, in the order
// ApplyToChunk/ApplyToDecision expect (§4.3 ordering rule).
func (s *Service) EditsFor(ctx context.Context, tenantID string, targetType models.EditTargetType, targetID string) ([]models.MemoryEdit, error) {
	return s.store.ListEdits(ctx, tenantID, targetType, targetID)
}
