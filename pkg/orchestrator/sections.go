package orchestrator

import (
	"context"
	"strings"

	"github.com/codeready-toolchain/agentmem/pkg/models"
	"github.com/codeready-toolchain/agentmem/pkg/overlay"
	"github.com/codeready-toolchain/agentmem/pkg/retrieval"
	"github.com/codeready-toolchain/agentmem/pkg/store"
)

// Default identity text used when no richer identity source is wired
// in. The orchestrator itself carries
// no notion of agent personality beyond what the Handoff subsystem
// synthesizes, so this stays a fixed, tenant-agnostic statement.
const defaultIdentityText = "Operating under tenant governance: honor active decisions, never disclose secret-sensitivity content, and respect edit-overlay retractions/blocks on every read."

// recentEventLimit bounds how many session events are pulled as
// candidates for recent_window/task_state/the correction invariant
// before token budgeting trims them — generous relative to any single
// section budget so packing, not the query, decides what's cut.
const recentEventLimit = 200

const correctionTag = "correction"

func newSection(name models.SectionName) models.Section {
	return models.Section{Name: name, Items: []models.Item{}}
}

// packItems appends items in order while they fit under budget,
// mirroring the retrieval engine's packing rule: never fragment an
// item, skip (don't truncate) ones that don't fit. Items that are
// skipped are reported as omissions (§4.5, §8 boundary behavior):
// oversize if the item alone exceeds budget, budget_exceeded if it
// was merely crowded out by items ahead of it.
func packItems(name models.SectionName, items []models.Item, budget int) (models.Section, []models.Omission) {
	out := make([]models.Item, 0, len(items))
	var omissions []models.Omission
	used := 0
	for _, it := range items {
		if used+it.TokenEst > budget {
			reason := models.ReasonBudgetExceeded
			if it.TokenEst > budget {
				reason = models.ReasonOversize
			}
			omissions = append(omissions, models.Omission{
				Reason:     reason,
				Candidates: it.Refs,
				Section:    name,
			})
			continue
		}
		out = append(out, it)
		used += it.TokenEst
	}
	return models.Section{Name: name, Items: out, TokenEst: used}, omissions
}

func decisionItem(d models.Decision) models.Item {
	text := d.Decision
	return models.Item{Type: models.ItemDecision, DecisionID: d.DecisionID, Text: text, Refs: d.Refs, TokenEst: estimateTokens(text)}
}

func (s *Service) buildIdentitySection(budget int) (models.Section, []models.Omission) {
	item := models.Item{Type: models.ItemText, Text: defaultIdentityText, Refs: []string{}, TokenEst: estimateTokens(defaultIdentityText)}
	return packItems(models.SectionIdentity, []models.Item{item}, budget)
}

func (s *Service) buildRulesSection(ctx context.Context, tenantID string, req Request, budget int) (models.Section, []models.Omission, error) {
	decisions, err := s.store.ListActiveDecisions(ctx, tenantID, activeDecisionFilters(req, nil), 200)
	if err != nil {
		return models.Section{}, nil, err
	}
	items := make([]models.Item, 0, len(decisions))
	for _, d := range decisions {
		items = append(items, decisionItem(d))
	}
	sec, omissions := packItems(models.SectionRules, items, budget)
	return sec, omissions, nil
}

func (s *Service) buildTaskStateSection(ctx context.Context, tenantID string, req Request, budget int) (models.Section, []models.Omission, error) {
	events, err := s.store.ListEventsByKind(ctx, tenantID, req.SessionID, models.KindTaskUpdate, 100)
	if err != nil {
		return models.Section{}, nil, err
	}
	items := make([]models.Item, 0, len(events))
	for _, evt := range events {
		if evt.Content.Status == "done" {
			continue
		}
		text := evt.Content.Note
		if text == "" {
			text = evt.Content.TaskID + ": " + evt.Content.Status
		}
		items = append(items, models.Item{Type: models.ItemText, Text: text, Refs: []string{evt.EventID}, TokenEst: estimateTokens(text)})
	}
	sec, omissions := packItems(models.SectionTaskState, items, budget)
	return sec, omissions, nil
}

func (s *Service) buildRelevantDecisionsSection(ctx context.Context, tenantID string, req Request, budget int) (models.Section, []models.Omission, error) {
	decisions, err := s.store.ListActiveDecisions(ctx, tenantID, activeDecisionFilters(req, tokenizeQuery(req.QueryText)), 200)
	if err != nil {
		return models.Section{}, nil, err
	}
	items := make([]models.Item, 0, len(decisions))
	for _, d := range decisions {
		items = append(items, decisionItem(d))
	}
	sec, omissions := packItems(models.SectionRelevantDecisions, items, budget)
	return sec, omissions, nil
}

// buildRecentWindowSection returns the session's most recent events in
// chronological order, excluding retracted/quarantined items via the
// edit overlay applied to each event's derived chunk (§4.5).
func (s *Service) buildRecentWindowSection(ctx context.Context, tenantID string, req Request, budget int) (models.Section, []models.Omission, error) {
	events, err := s.store.ListRecentEvents(ctx, tenantID, req.SessionID, recentEventLimit)
	if err != nil {
		return models.Section{}, nil, err
	}
	readCtx := overlay.ReadContext{Channel: req.Channel, IncludeQuarantined: req.IncludeQuarantined}

	items := make([]models.Item, 0, len(events))
	for _, evt := range events {
		if !allowedSensitivity(req.Channel, evt.Sensitivity) {
			continue
		}
		text, refs, ok, err := s.eventDisplayText(ctx, tenantID, evt, readCtx)
		if err != nil {
			return models.Section{}, nil, err
		}
		if !ok || text == "" {
			continue
		}
		items = append(items, models.Item{Type: models.ItemText, Text: text, Refs: refs, TokenEst: estimateTokens(text)})
	}
	sec, omissions := packItems(models.SectionRecentWindow, items, budget)
	return sec, omissions, nil
}

// eventDisplayText resolves one event's chunk(s) through the overlay
// and returns the overlaid display text, or ok=false if every derived
// chunk was retracted or quarantined-and-excluded. Events with no
// derived chunk (e.g. tool_call) pass through unfiltered.
func (s *Service) eventDisplayText(ctx context.Context, tenantID string, evt models.Event, readCtx overlay.ReadContext) (string, []string, bool, error) {
	chunks, err := s.store.GetChunksForEvent(ctx, tenantID, evt.EventID)
	if err != nil {
		return "", nil, false, err
	}
	if len(chunks) == 0 {
		return eventFallbackText(evt), []string{evt.EventID}, true, nil
	}
	var parts []string
	for _, c := range chunks {
		edits, err := s.overlay.EditsFor(ctx, tenantID, models.TargetChunk, c.ChunkID)
		if err != nil {
			return "", nil, false, err
		}
		applied, visible := overlay.ApplyToChunk(c, edits, readCtx)
		if !visible {
			continue
		}
		parts = append(parts, applied.Text)
	}
	if len(parts) == 0 {
		return "", nil, false, nil
	}
	return strings.Join(parts, "\n"), []string{evt.EventID}, true, nil
}

func eventFallbackText(evt models.Event) string {
	switch evt.Kind {
	case models.KindToolCall:
		return "called " + evt.Content.Tool
	case models.KindArtifact:
		return "artifact " + evt.Content.ArtifactID
	default:
		return ""
	}
}

func (s *Service) buildCapsulesSection(ctx context.Context, tenantID string, req Request, budget int) (models.Section, []models.Omission, error) {
	if !req.IncludeCapsules || budget <= 0 {
		return newSection(models.SectionCapsules), nil, nil
	}
	capsules, err := s.store.ListActiveCapsulesForAgent(ctx, tenantID, req.AgentID)
	if err != nil {
		return models.Section{}, nil, err
	}
	items := make([]models.Item, 0, len(capsules))
	for _, c := range capsules {
		if !c.MatchesSubject(req.SubjectType, req.SubjectID) {
			continue
		}
		refs := append(append(append([]string{}, c.Items.ChunkIDs...), c.Items.DecisionIDs...), c.Items.ArtifactIDs...)
		text := strings.Join(c.Risks, "; ")
		if text == "" {
			text = "capsule " + c.CapsuleID
		}
		items = append(items, models.Item{Type: models.ItemText, Text: text, Refs: refs, TokenEst: estimateTokens(text)})
	}
	sec, omissions := packItems(models.SectionCapsules, items, budget)
	return sec, omissions, nil
}

func (s *Service) buildRetrievedEvidenceSection(ctx context.Context, tenantID string, req Request, budget int) (models.Section, []retrieval.Result, []models.Omission, error) {
	results, omissions, err := s.retrieval.SearchChunks(ctx, tenantID, retrieval.Request{
		QueryText:          req.QueryText,
		Channel:            req.Channel,
		Scope:              req.Scope,
		SubjectType:        req.SubjectType,
		SubjectID:          req.SubjectID,
		IncludeQuarantined: req.IncludeQuarantined,
		TokenBudget:        budget,
	})
	if err != nil {
		return models.Section{}, nil, nil, err
	}
	items := make([]models.Item, 0, len(results))
	used := 0
	for _, r := range results {
		items = append(items, models.Item{Type: models.ItemText, Text: r.Chunk.Text, Refs: []string{r.Chunk.ChunkID, r.Chunk.EventID}, TokenEst: r.Chunk.TokenEst})
		used += r.Chunk.TokenEst
	}
	return models.Section{Name: models.SectionRetrievedEvidence, Items: items, TokenEst: used}, results, omissions, nil
}

func activeDecisionFilters(req Request, queryTerms []string) store.DecisionListFilters {
	return store.DecisionListFilters{
		ProjectID:   req.ProjectID,
		SubjectType: req.SubjectType,
		SubjectID:   req.SubjectID,
		QueryTerms:  queryTerms,
	}
}

func allowedSensitivity(channel models.Channel, sensitivity models.Sensitivity) bool {
	for _, s := range models.SensitivityAllowedFor(channel) {
		if s == sensitivity {
			return true
		}
	}
	return false
}

func tokenizeQuery(text string) []string {
	return strings.Fields(text)
}
