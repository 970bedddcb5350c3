package consolidation

import (
	"context"
	"time"
)

// decisionArchiveAfterDaysDefault backs archiveDecisions when the
// config leaves ArchiveAfterDays unset, matching the spec's fixed
// 60-day threshold (§4.7).
const decisionArchiveAfterDaysDefault = 60

// archiveDecisions flips active decisions older than the archive
// cutoff (with no read reference in that window) to archived, one
// BatchSize batch at a time until a batch comes back short, signaling
// no more eligible rows remain (§4.7).
func (s *Service) archiveDecisions(ctx context.Context, tenantID string) (processed, affected int, err error) {
	days := s.cfg.ArchiveAfterDays
	if days <= 0 {
		days = decisionArchiveAfterDaysDefault
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	batch := s.cfg.BatchSize
	if batch <= 0 {
		batch = 50
	}

	for {
		n, err := s.store.ArchiveDecisionsOlderThan(ctx, tenantID, cutoff, batch)
		if err != nil {
			return processed, affected, err
		}
		processed += n
		affected += n
		if n < batch {
			break
		}
	}
	return processed, affected, nil
}
