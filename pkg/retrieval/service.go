// Package retrieval implements the retrieval engine (§4.4, C4): it
// ranks candidate chunks for a query, applies the edit overlay, scores
// and packs them under a token budget without ever fragmenting a chunk.
package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/codeready-toolchain/agentmem/pkg/config"
	"github.com/codeready-toolchain/agentmem/pkg/models"
	"github.com/codeready-toolchain/agentmem/pkg/overlay"
	"github.com/codeready-toolchain/agentmem/pkg/store"
)

// chunkStore is the subset of *store.Store the retrieval engine needs.
type chunkStore interface {
	SearchChunks(ctx context.Context, tenantID string, queryTerms []string, filters store.ChunkFilters, limitCandidates, limitReturn int) ([]store.RankedChunk, error)
}

// editLister supplies the approved edits targeting one chunk, in
// approval order (satisfied by *overlay.Service).
type editLister interface {
	EditsFor(ctx context.Context, tenantID string, targetType models.EditTargetType, targetID string) ([]models.MemoryEdit, error)
}

// Service implements search_chunks (§4.4, §6).
type Service struct {
	store   chunkStore
	overlay editLister
	cfg     config.RetrievalConfig
	log     *slog.Logger
}

func New(store chunkStore, overlaySvc editLister, cfg config.RetrievalConfig, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, overlay: overlaySvc, cfg: cfg, log: log}
}

// SearchChunks ranks, overlays, scores, and packs chunks for req under
// its token budget (§4.4). The candidate pool is capped at
// cfg.CandidatePoolMax and the scored pool at cfg.ScoredMax before
// packing ever runs. Candidates that don't fit the budget are reported
// as omissions (§4.5, §8 boundary behavior) rather than silently dropped.
func (s *Service) SearchChunks(ctx context.Context, tenantID string, req Request) ([]Result, []models.Omission, error) {
	filters := store.ChunkFilters{
		Channel:            req.Channel,
		SensitivityAllowed: models.SensitivityAllowedFor(req.Channel),
		Scope:              req.Scope,
		SubjectType:        req.SubjectType,
		SubjectID:          req.SubjectID,
		Kinds:              req.Kinds,
	}

	candidates, err := s.store.SearchChunks(ctx, tenantID, tokenizeQuery(req.QueryText), filters, s.cfg.CandidatePoolMax, s.cfg.ScoredMax)
	if err != nil {
		return nil, nil, err
	}
	if len(candidates) == 0 {
		return nil, nil, nil
	}

	maxRank := 0.0
	for _, c := range candidates {
		if c.Rank > maxRank {
			maxRank = c.Rank
		}
	}

	now := time.Now().UTC()
	readCtx := overlay.ReadContext{Channel: req.Channel, IncludeQuarantined: req.IncludeQuarantined}

	scored := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		edits, err := s.overlay.EditsFor(ctx, tenantID, models.TargetChunk, c.Chunk.ChunkID)
		if err != nil {
			return nil, nil, err
		}
		chunk, visible := overlay.ApplyToChunk(c.Chunk, edits, readCtx)
		if !visible {
			continue
		}

		normRank := 0.0
		if maxRank > 0 {
			normRank = c.Rank / maxRank
		}
		decay := recencyDecay(chunk.TS, now, s.cfg.RecencyTauDays)
		sc := score(s.cfg.Alpha, s.cfg.Beta, s.cfg.Gamma, normRank, decay, chunk.Importance)
		scored = append(scored, Result{Chunk: chunk, Score: sc})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if !scored[i].Chunk.TS.Equal(scored[j].Chunk.TS) {
			return scored[i].Chunk.TS.After(scored[j].Chunk.TS)
		}
		return scored[i].Chunk.ChunkID > scored[j].Chunk.ChunkID
	})

	packed, omissions := pack(scored, req.TokenBudget)
	return packed, omissions, nil
}

// pack iterates ranked results, including each candidate only if it
// fits within the remaining budget; a chunk that doesn't fit is
// skipped, never fragmented (§4.4 packing rule), and recorded as an
// omission: oversize if it could never fit the section's budget at
// all, budget_exceeded if it was merely crowded out by higher-ranked
// candidates (§4.5, §8 boundary behavior).
func pack(ranked []Result, tokenBudget int) ([]Result, []models.Omission) {
	out := make([]Result, 0, len(ranked))
	var omissions []models.Omission
	running := 0
	for _, r := range ranked {
		if running+r.Chunk.TokenEst > tokenBudget {
			reason := models.ReasonBudgetExceeded
			if r.Chunk.TokenEst > tokenBudget {
				reason = models.ReasonOversize
			}
			omissions = append(omissions, models.Omission{
				Reason:     reason,
				Candidates: []string{r.Chunk.ChunkID},
				Section:    models.SectionRetrievedEvidence,
			})
			continue
		}
		out = append(out, r)
		running += r.Chunk.TokenEst
	}
	return out, omissions
}
