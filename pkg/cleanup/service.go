// Package cleanup runs the periodic capsule-expiry sweep (SPEC_FULL.md
// §C): a lightweight retention job, distinct from consolidation, that
// flips capsules past their TTL to expired.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/agentmem/pkg/config"
)

// sweepStore is the subset of *store.Store this package depends on.
type sweepStore interface {
	SweepExpiredCapsules(ctx context.Context) (int, error)
}

// Service periodically expires capsules past expires_at. Idempotent and
// safe to run from multiple instances.
type Service struct {
	cfg   config.RetentionConfig
	store sweepStore
	log   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg config.RetentionConfig, store sweepStore, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{cfg: cfg, store: store, log: log}
}

// Start launches the background sweep loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	s.log.Info("capsule retention sweep started", "interval", s.cfg.CapsuleSweepInterval)
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.log.Info("capsule retention sweep stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.sweep(ctx)

	interval := s.cfg.CapsuleSweepInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Service) sweep(ctx context.Context) {
	n, err := s.store.SweepExpiredCapsules(ctx)
	if err != nil {
		s.log.Error("capsule retention sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.log.Info("capsule retention sweep expired capsules", "count", n)
	}
}
