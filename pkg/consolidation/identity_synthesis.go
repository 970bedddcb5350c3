package consolidation

import (
	"context"
	"strings"
	"time"

	"github.com/codeready-toolchain/agentmem/pkg/ids"
	"github.com/codeready-toolchain/agentmem/pkg/models"
)

// identityNoteTargetTokens bounds the Summarizer call that produces a
// Knowledge Note's content from a theme bucket's becoming statements.
const identityNoteTargetTokens = 300

var themeStopwords = map[string]bool{
	"the": true, "and": true, "that": true, "this": true, "with": true,
	"have": true, "from": true, "about": true, "into": true, "when": true,
	"what": true, "work": true, "been": true, "were": true, "their": true,
	"i": true, "me": true, "my": true, "a": true, "an": true, "is": true,
	"it": true, "to": true, "of": true, "in": true, "on": true, "for": true,
}

// synthesizeIdentity buckets identity-thread becoming statements by
// keyword-derived theme; any bucket meeting IdentitySynthesisMinBucket
// becomes one Knowledge Note, with its source handoffs marked
// integrated (§4.7 identity synthesis).
func (s *Service) synthesizeIdentity(ctx context.Context, tenantID string) (processed, affected int, err error) {
	thread, err := s.store.GetIdentityThread(ctx, tenantID)
	if err != nil {
		return 0, 0, err
	}

	buckets := make(map[string][]models.Handoff)
	var order []string
	for _, h := range thread {
		if h.IntegratedInto != "" {
			continue
		}
		processed++
		theme := deriveTheme(h.Becoming)
		if _, ok := buckets[theme]; !ok {
			order = append(order, theme)
		}
		buckets[theme] = append(buckets[theme], h)
	}

	now := time.Now().UTC()
	var themes, keyInsights, allSource []string
	var earliest time.Time

	for _, theme := range order {
		members := buckets[theme]
		if len(members) < s.cfg.IdentitySynthesisMinBucket {
			continue
		}

		statements := make([]string, 0, len(members))
		sourceHandoffs := make([]string, 0, len(members))
		for _, h := range members {
			statements = append(statements, h.Becoming)
			sourceHandoffs = append(sourceHandoffs, h.HandoffID)
			if earliest.IsZero() || h.CreatedAt.Before(earliest) {
				earliest = h.CreatedAt
			}
		}

		content, err := s.summarizer.Summarize(ctx, strings.Join(statements, " "), identityNoteTargetTokens, ModeIdentity)
		if err != nil {
			return processed, affected, err
		}

		note := models.KnowledgeNote{
			NoteID:         ids.New(ids.PrefixKnowledge),
			TenantID:       tenantID,
			Title:          strings.Title(theme), //nolint:staticcheck // simple title-case, no locale needs
			Content:        content,
			SourceHandoffs: sourceHandoffs,
			Confidence:     bucketConfidence(len(members)),
			Tags:           []string{theme},
		}
		if err := s.store.CreateKnowledgeNote(ctx, note); err != nil {
			return processed, affected, err
		}

		for _, h := range members {
			if err := s.store.MarkHandoffIntegrated(ctx, h.HandoffID, note.NoteID); err != nil {
				return processed, affected, err
			}
		}

		affected += len(members)
		themes = append(themes, theme)
		keyInsights = append(keyInsights, note.Title)
		allSource = append(allSource, sourceHandoffs...)
	}

	if len(themes) > 0 {
		if err := s.store.CreateReflection(ctx, models.Reflection{
			ReflectionID:   ids.New(ids.PrefixReflection),
			TenantID:       tenantID,
			PeriodStart:    earliest,
			PeriodEnd:      now,
			SessionCount:   len(thread),
			Summary:        "identity synthesis: " + strings.Join(themes, ", "),
			KeyInsights:    keyInsights,
			Themes:         themes,
			SourceHandoffs: allSource,
		}); err != nil {
			return processed, affected, err
		}
	}

	return processed, affected, nil
}

// bucketConfidence scales with bucket size: more corroborating
// statements, higher confidence, capped at 1.0.
func bucketConfidence(n int) float64 {
	c := float64(n) / 20.0
	if c > 1.0 {
		return 1.0
	}
	return c
}

// deriveTheme picks the first non-stopword, non-trivial-length word in
// a becoming statement as its bucket key. Becoming statements are
// short first-person reflections, so the first substantive word is
// usually the concept the statement is actually about ("debugging",
// "collaboration", "caution").
func deriveTheme(becoming string) string {
	for _, word := range strings.Fields(strings.ToLower(becoming)) {
		word = strings.Trim(word, ".,;:!?'\"")
		if len(word) < 4 || themeStopwords[word] {
			continue
		}
		return word
	}
	return "general"
}
