package consolidation

import (
	"context"
	"strings"
	"time"

	"github.com/codeready-toolchain/agentmem/pkg/models"
)

// handoffCutoffDays maps each compression transition to its minimum
// age in days (§4.7 schedule table).
func (s *Service) handoffCutoffDays(toLevel models.CompressionLevel) int {
	switch toLevel {
	case models.CompressionSummary:
		return s.cfg.SummaryAfterDays
	case models.CompressionQuickRef:
		return s.cfg.QuickRefAfterDays
	case models.CompressionIntegrated:
		return s.cfg.IntegratedAfterDays
	default:
		return 0
	}
}

// compressHandoffs compresses every eligible handoff at fromLevel into
// toLevel, up to runCap total (0 = unlimited), checkpointing every
// BatchSize handoffs (§4.7, §5). Source content is retained only at
// "full"; every other level keeps just the condensed narrative plus
// the untouched Becoming statement, since identity continuity must
// survive compression even as episodic detail is discarded.
func (s *Service) compressHandoffs(ctx context.Context, tenantID string, fromLevel, toLevel models.CompressionLevel, mode SummaryMode, targetTokens, runCap int) (processed, affected int, err error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.handoffCutoffDays(toLevel))

	for runCap <= 0 || processed < runCap {
		batch := s.cfg.BatchSize
		if runCap > 0 && processed+batch > runCap {
			batch = runCap - processed
		}
		handoffs, err := s.store.ListHandoffsForCompression(ctx, tenantID, fromLevel, cutoff, batch)
		if err != nil {
			return processed, affected, err
		}
		if len(handoffs) == 0 {
			break
		}

		for _, h := range handoffs {
			source := sourceText(h)
			compact, err := s.summarizer.Summarize(ctx, source, targetTokens, mode)
			if err != nil {
				return processed, affected, err
			}
			if err := s.store.UpdateHandoffCompression(ctx, h.HandoffID, toLevel, "", "", "", "", compact, h.Becoming); err != nil {
				return processed, affected, err
			}
			processed++
			affected++
		}

		if len(handoffs) < batch {
			break
		}
	}
	return processed, affected, nil
}

// sourceText is the text handed to the Summarizer as "previous
// content": the richest fields still populated on the handoff, in
// narrative order.
func sourceText(h models.Handoff) string {
	var parts []string
	for _, p := range []string{h.Story, h.Experienced, h.Noticed, h.Learned, h.Remember} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
