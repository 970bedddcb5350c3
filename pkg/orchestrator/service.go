// Package orchestrator implements build_acb (§4.5, C5): mode detection,
// the seven fixed budgeted sections in assembly order, sticky-invariant
// enforcement, and provenance recording.
package orchestrator

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/agentmem/pkg/config"
	"github.com/codeready-toolchain/agentmem/pkg/ids"
	"github.com/codeready-toolchain/agentmem/pkg/models"
	"github.com/codeready-toolchain/agentmem/pkg/overlay"
	"github.com/codeready-toolchain/agentmem/pkg/retrieval"
	"github.com/codeready-toolchain/agentmem/pkg/store"
)

// Service assembles Active Context Bundles. Stateless aside from its
// dependencies; safe for concurrent use.
type Service struct {
	store     storeDeps
	overlay   editLister
	retrieval *retrieval.Service
	cfg       *config.Config
	log       *slog.Logger

	// budgets is set per-Build call so the sticky-invariant pass
	// (sticky.go) can look up a section's limit without threading it
	// through every helper signature.
	budgets map[models.SectionName]int
}

// editLister is the subset of *overlay.Service the orchestrator needs to
// resolve per-chunk edits while rendering recent_window.
type editLister interface {
	EditsFor(ctx context.Context, tenantID string, targetType models.EditTargetType, targetID string) ([]models.MemoryEdit, error)
}

// storeDeps is the subset of *store.Store the orchestrator's section
// builders and sticky-invariant pass depend on.
type storeDeps interface {
	ListActiveDecisions(ctx context.Context, tenantID string, filters store.DecisionListFilters, limit int) ([]models.Decision, error)
	ListSafetyCriticalDecisions(ctx context.Context, tenantID, subjectType, subjectID string) ([]models.Decision, error)
	ListEventsByKind(ctx context.Context, tenantID, sessionID string, kind models.EventKind, limit int) ([]models.Event, error)
	ListRecentEvents(ctx context.Context, tenantID, sessionID string, limit int) ([]models.Event, error)
	GetChunksForEvent(ctx context.Context, tenantID, eventID string) ([]models.Chunk, error)
	ListActiveCapsulesForAgent(ctx context.Context, tenantID, agentID string) ([]models.Capsule, error)
}

// New builds an orchestrator Service.
func New(store storeDeps, overlaySvc editLister, retrievalSvc *retrieval.Service, cfg *config.Config, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, overlay: overlaySvc, retrieval: retrievalSvc, cfg: cfg, log: log}
}

// Build assembles one Active Context Bundle for the given request (§4.5).
func (s *Service) Build(ctx context.Context, principal models.Principal, req Request) (*models.ACB, error) {
	tenantID := principal.TenantID
	mode := s.cfg.DetectMode(req.Intent)
	budgets := s.cfg.ModeBudgetsFor(mode)

	// requestID exists purely for log correlation across the section
	// builders below; it is never persisted on the ACB itself.
	requestID := uuid.NewString()
	s.log.Debug("building acb", "request_id", requestID, "tenant_id", tenantID, "mode", mode, "intent", req.Intent)

	sectionBudgets := map[models.SectionName]int{
		models.SectionIdentity:          budgets.Identity,
		models.SectionRules:             budgets.Rules,
		models.SectionTaskState:         budgets.TaskState,
		models.SectionRelevantDecisions: budgets.RelevantDecisions,
		models.SectionRecentWindow:      budgets.RecentWindow,
		models.SectionCapsules:          budgets.Capsules,
		models.SectionRetrievedEvidence: budgets.RetrievedEvidence,
	}

	acb := &models.ACB{
		ACBID:        ids.New(ids.PrefixACB),
		BudgetTokens: req.MaxTokens,
		Mode:         mode,
		Sections:     make([]models.Section, 0, len(models.AssemblyOrder)),
		Omissions:    []models.Omission{},
	}

	// budgetFor caps a section's budget at what is left of MaxTokens, so
	// the bundle total never exceeds it.
	budgetFor := func(name models.SectionName) int {
		return max(0, min(sectionBudgets[name], acb.BudgetTokens-acb.TokenUsedEst))
	}

	identitySec, identityOm := s.buildIdentitySection(budgetFor(models.SectionIdentity))
	acb.Sections = append(acb.Sections, identitySec)
	acb.TokenUsedEst += identitySec.TokenEst
	acb.Omissions = append(acb.Omissions, identityOm...)

	rulesSec, rulesOm, err := s.buildRulesSection(ctx, tenantID, req, budgetFor(models.SectionRules))
	if err != nil {
		return nil, err
	}
	acb.Sections = append(acb.Sections, rulesSec)
	acb.TokenUsedEst += rulesSec.TokenEst
	acb.Omissions = append(acb.Omissions, rulesOm...)

	taskStateSec, taskStateOm, err := s.buildTaskStateSection(ctx, tenantID, req, budgetFor(models.SectionTaskState))
	if err != nil {
		return nil, err
	}
	acb.Sections = append(acb.Sections, taskStateSec)
	acb.TokenUsedEst += taskStateSec.TokenEst
	acb.Omissions = append(acb.Omissions, taskStateOm...)

	relevantDecisionsSec, relevantDecisionsOm, err := s.buildRelevantDecisionsSection(ctx, tenantID, req, budgetFor(models.SectionRelevantDecisions))
	if err != nil {
		return nil, err
	}
	acb.Sections = append(acb.Sections, relevantDecisionsSec)
	acb.TokenUsedEst += relevantDecisionsSec.TokenEst
	acb.Omissions = append(acb.Omissions, relevantDecisionsOm...)

	recentWindowSec, recentWindowOm, err := s.buildRecentWindowSection(ctx, tenantID, req, budgetFor(models.SectionRecentWindow))
	if err != nil {
		return nil, err
	}
	acb.Sections = append(acb.Sections, recentWindowSec)
	acb.TokenUsedEst += recentWindowSec.TokenEst
	acb.Omissions = append(acb.Omissions, recentWindowOm...)

	capsulesSec, capsulesOm, err := s.buildCapsulesSection(ctx, tenantID, req, budgetFor(models.SectionCapsules))
	if err != nil {
		return nil, err
	}
	acb.Sections = append(acb.Sections, capsulesSec)
	acb.TokenUsedEst += capsulesSec.TokenEst
	acb.Omissions = append(acb.Omissions, capsulesOm...)

	evidenceSec, results, evidenceOm, err := s.buildRetrievedEvidenceSection(ctx, tenantID, req, budgetFor(models.SectionRetrievedEvidence))
	if err != nil {
		return nil, err
	}
	acb.Sections = append(acb.Sections, evidenceSec)
	acb.TokenUsedEst += evidenceSec.TokenEst
	acb.Omissions = append(acb.Omissions, evidenceOm...)

	if err := s.enforceStickyInvariants(ctx, tenantID, req, acb); err != nil {
		return nil, err
	}

	acb.Provenance = models.Provenance{
		Intent:             req.Intent,
		Mode:               mode,
		QueryTerms:         tokenizeQuery(req.QueryText),
		CandidatePoolSize:  len(results),
		SensitivityAllowed: models.SensitivityAllowedFor(req.Channel),
		Scope:              req.Scope,
		Scoring: models.ScoringWeights{
			Alpha: s.cfg.Retrieval.Alpha,
			Beta:  s.cfg.Retrieval.Beta,
			Gamma: s.cfg.Retrieval.Gamma,
		},
	}

	return acb, nil
}

func overlayReadContext(req Request) overlay.ReadContext {
	return overlay.ReadContext{Channel: req.Channel, IncludeQuarantined: req.IncludeQuarantined}
}
