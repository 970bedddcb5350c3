// Package handoff implements create_handoff, get_last_handoff,
// get_identity_thread, and wake_up (§4.6, C6).
package handoff

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/codeready-toolchain/agentmem/pkg/apperr"
	"github.com/codeready-toolchain/agentmem/pkg/ids"
	"github.com/codeready-toolchain/agentmem/pkg/models"
)

// handoffStore is the subset of *store.Store this service depends on,
// kept narrow so tests can substitute a fake without a database.
type handoffStore interface {
	CreateHandoff(ctx context.Context, h models.Handoff) error
	GetLastHandoff(ctx context.Context, tenantID, withWhom string) (*models.Handoff, error)
	GetIdentityThread(ctx context.Context, tenantID string) ([]models.Handoff, error)
	CountActiveDecisions(ctx context.Context, tenantID string) (int, error)
	CountKnowledgeNotes(ctx context.Context, tenantID string) (int, error)
	AppendAudit(ctx context.Context, e models.AuditEvent) error
}

// Service implements the Handoff & Identity operations. Stateless aside
// from its dependencies; safe for concurrent use.
type Service struct {
	store handoffStore
	log   *slog.Logger
}

// New builds a handoff Service.
func New(store handoffStore, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, log: log}
}

// CreateHandoff writes a full-compression handoff and returns its ID
// (§4.6).
func (s *Service) CreateHandoff(ctx context.Context, principal models.Principal, req CreateHandoffRequest) (string, error) {
	if err := validate(req); err != nil {
		return "", err
	}

	h := models.Handoff{
		HandoffID:        ids.New(ids.PrefixHandoff),
		TenantID:         principal.TenantID,
		SessionID:        req.SessionID,
		Experienced:      req.Experienced,
		Noticed:          req.Noticed,
		Learned:          req.Learned,
		Remember:         req.Remember,
		Story:            req.Story,
		Becoming:         req.Becoming,
		Significance:     req.Significance,
		Tags:             req.Tags,
		WithWhom:         req.WithWhom,
		CompressionLevel: models.CompressionFull,
	}

	if err := s.store.CreateHandoff(ctx, h); err != nil {
		return "", err
	}

	if err := s.store.AppendAudit(ctx, models.AuditEvent{
		TS:           time.Now().UTC(),
		TenantID:     principal.TenantID,
		UserID:       principal.UserID,
		EventType:    models.EventTypeDataWrite,
		ResourceType: "handoff",
		ResourceID:   h.HandoffID,
		Action:       "create_handoff",
		Outcome:      "success",
	}); err != nil {
		s.log.Error("failed to append audit record for create_handoff", "handoff_id", h.HandoffID, "error", err)
	}

	return h.HandoffID, nil
}

func validate(req CreateHandoffRequest) error {
	if req.SessionID == "" {
		return apperr.NewValidation("session_id", "required")
	}
	if req.Experienced == "" && req.Noticed == "" && req.Learned == "" && req.Remember == "" {
		return apperr.NewValidation("handoff", "at least one of experienced/noticed/learned/remember must be set")
	}
	if req.Significance < 0 || req.Significance > 1 {
		return apperr.NewValidation("significance", "must be between 0 and 1")
	}
	return nil
}

// GetLastHandoff returns the most recent handoff, optionally restricted
// to a with_whom value, or nil if none exists (§4.6).
func (s *Service) GetLastHandoff(ctx context.Context, principal models.Principal, withWhom string) (*models.Handoff, error) {
	return s.store.GetLastHandoff(ctx, principal.TenantID, withWhom)
}

// GetIdentityThread returns every handoff with a non-empty becoming
// statement, newest first (§4.6).
func (s *Service) GetIdentityThread(ctx context.Context, principal models.Principal) ([]IdentityThreadEntry, error) {
	handoffs, err := s.store.GetIdentityThread(ctx, principal.TenantID)
	if err != nil {
		return nil, err
	}
	out := make([]IdentityThreadEntry, 0, len(handoffs))
	for _, h := range handoffs {
		out = append(out, IdentityThreadEntry{
			HandoffID:    h.HandoffID,
			Becoming:     h.Becoming,
			CreatedAt:    h.CreatedAt,
			Significance: h.Significance,
		})
	}
	return out, nil
}

// WakeUp composes a greeting narrative from the last handoff, the top-K
// identity-thread becoming statements, and current active-decision and
// knowledge-note counts. Read-only; no mutation (§4.6).
func (s *Service) WakeUp(ctx context.Context, principal models.Principal, withWhom string) (*WakeUpResult, error) {
	last, err := s.store.GetLastHandoff(ctx, principal.TenantID, withWhom)
	if err != nil {
		return nil, err
	}

	thread, err := s.GetIdentityThread(ctx, principal)
	if err != nil {
		return nil, err
	}
	if len(thread) > topKBecoming {
		thread = thread[:topKBecoming]
	}

	decisionsCount, err := s.store.CountActiveDecisions(ctx, principal.TenantID)
	if err != nil {
		return nil, err
	}
	notesCount, err := s.store.CountKnowledgeNotes(ctx, principal.TenantID)
	if err != nil {
		return nil, err
	}

	return &WakeUpResult{
		GreetingContext:      composeGreeting(withWhom, last, thread, decisionsCount, notesCount),
		LastHandoff:          last,
		IdentityThread:       thread,
		RecentDecisionsCount: decisionsCount,
		KnowledgeNotesCount:  notesCount,
	}, nil
}

func composeGreeting(withWhom string, last *models.Handoff, thread []IdentityThreadEntry, decisionsCount, notesCount int) string {
	var b strings.Builder
	if withWhom != "" {
		fmt.Fprintf(&b, "Picking back up with %s. ", withWhom)
	}
	if last != nil {
		if last.Story != "" {
			fmt.Fprintf(&b, "Last time: %s ", last.Story)
		} else if last.Experienced != "" {
			fmt.Fprintf(&b, "Last time: %s ", last.Experienced)
		}
	}
	if len(thread) > 0 {
		b.WriteString("What I've come to understand about myself: ")
		for i, e := range thread {
			if i > 0 {
				b.WriteString("; ")
			}
			b.WriteString(e.Becoming)
		}
		b.WriteString(". ")
	}
	fmt.Fprintf(&b, "Currently tracking %d active decision(s) and %d knowledge note(s).", decisionsCount, notesCount)
	return b.String()
}
