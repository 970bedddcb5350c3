package orchestrator

import (
	"context"

	"github.com/codeready-toolchain/agentmem/pkg/models"
)

// enforceStickyInvariants checks the four sticky invariants (§4.5) and,
// for any missing one, evicts the lowest-priority item first from its
// own target section, then from retrieved_evidence (the most
// flexible, highest-volume section), to make room before falling back
// to recording an omission. Applied after normal section packing so
// it can observe what was actually included.
func (s *Service) enforceStickyInvariants(ctx context.Context, tenantID string, req Request, acb *models.ACB) error {
	safetyDecisions, err := s.store.ListSafetyCriticalDecisions(ctx, tenantID, req.SubjectType, req.SubjectID)
	if err != nil {
		return err
	}
	for _, d := range safetyDecisions {
		s.ensureDecisionPresent(acb, d, models.SectionRules)
	}

	correction, err := s.findMostRecentCorrection(ctx, tenantID, req)
	if err != nil {
		return err
	}
	if correction != nil {
		s.ensureItemPresent(acb, models.SectionRecentWindow, *correction, []string{correction.Refs[0]})
	}

	hardConstraintDecisions, err := s.store.ListActiveDecisions(ctx, tenantID, activeDecisionFilters(req, nil), 200)
	if err != nil {
		return err
	}
	for _, d := range hardConstraintDecisions {
		if !d.HasHardConstraints() {
			continue
		}
		if !d.MatchesSubject(req.SubjectType, req.SubjectID) {
			continue
		}
		s.ensureDecisionPresent(acb, d, models.SectionRules)
	}

	blockingErrors, err := s.store.ListEventsByKind(ctx, tenantID, req.SessionID, models.KindTaskUpdate, 100)
	if err != nil {
		return err
	}
	for _, evt := range blockingErrors {
		if evt.Content.Status != "blocked" && evt.Content.Status != "error" {
			continue
		}
		text := evt.Content.Note
		if text == "" {
			text = evt.Content.TaskID + ": " + evt.Content.Status
		}
		item := models.Item{Type: models.ItemText, Text: text, Refs: []string{evt.EventID}, TokenEst: estimateTokens(text)}
		s.ensureItemPresent(acb, models.SectionTaskState, item, item.Refs)
	}

	return nil
}

func (s *Service) findMostRecentCorrection(ctx context.Context, tenantID string, req Request) (*models.Item, error) {
	events, err := s.store.ListRecentEvents(ctx, tenantID, req.SessionID, recentEventLimit)
	if err != nil {
		return nil, err
	}
	for i := len(events) - 1; i >= 0; i-- {
		evt := events[i]
		for _, tag := range evt.Tags {
			if tag == correctionTag {
				text, refs, ok, err := s.eventDisplayText(ctx, tenantID, evt, overlayReadContext(req))
				if err != nil {
					return nil, err
				}
				if !ok || text == "" {
					continue
				}
				return &models.Item{Type: models.ItemText, Text: text, Refs: refs, TokenEst: estimateTokens(text)}, nil
			}
		}
	}
	return nil, nil
}

// ensureDecisionPresent guarantees d appears in the named section,
// evicting lower-priority items to make room if needed.
func (s *Service) ensureDecisionPresent(acb *models.ACB, d models.Decision, sectionName models.SectionName) {
	item := decisionItem(d)
	s.ensureItemPresent(acb, sectionName, item, item.Refs)
}

// ensureItemPresent guarantees an item identified by its Refs appears
// in the given section. If there isn't enough overall headroom left
// in the bundle, it evicts the section's own lowest-priority item
// first (the section that needs the room), then falls back to
// retrieved_evidence (the most flexible, highest-volume section);
// records an omission if neither frees enough space.
func (s *Service) ensureItemPresent(acb *models.ACB, sectionName models.SectionName, item models.Item, refs []string) {
	sec := acb.Section(sectionName)
	if sec == nil {
		return
	}
	if itemPresent(sec, refs) {
		return
	}

	for acb.BudgetTokens-acb.TokenUsedEst < item.TokenEst {
		if evictLowestPriority(acb, sec) {
			continue
		}
		if sectionName != models.SectionRetrievedEvidence && evictLowestPriority(acb, acb.Section(models.SectionRetrievedEvidence)) {
			continue
		}
		acb.Omissions = append(acb.Omissions, models.Omission{
			Reason:     models.ReasonBudgetExhaustedSticky,
			Candidates: refs,
			Section:    sectionName,
		})
		return
	}

	sec.Items = append(sec.Items, item)
	sec.TokenEst += item.TokenEst
	acb.TokenUsedEst += item.TokenEst
}

func itemPresent(sec *models.Section, refs []string) bool {
	for _, it := range sec.Items {
		for _, ref := range it.Refs {
			for _, want := range refs {
				if ref == want {
					return true
				}
			}
		}
	}
	return false
}

// evictLowestPriority drops the lowest-priority (last) item from sec,
// freeing its tokens from the bundle's overall usage. Reports whether
// it could free anything at all.
func evictLowestPriority(acb *models.ACB, sec *models.Section) bool {
	if sec == nil || len(sec.Items) == 0 {
		return false
	}
	last := sec.Items[len(sec.Items)-1]
	sec.Items = sec.Items[:len(sec.Items)-1]
	sec.TokenEst -= last.TokenEst
	acb.TokenUsedEst -= last.TokenEst
	acb.Omissions = append(acb.Omissions, models.Omission{
		Reason:     models.ReasonBudgetExhaustedSticky,
		Candidates: last.Refs,
		Section:    sec.Name,
		Detail:     "evicted to make room for a sticky invariant",
	})
	return true
}
