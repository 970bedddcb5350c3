// Package consolidation implements the Consolidation Engine (§4.7, C7):
// handoff compression, decision archival, and identity synthesis, each
// run per tenant under a per-tenant advisory lock and recorded as a
// job.
package consolidation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/agentmem/pkg/apperr"
	"github.com/codeready-toolchain/agentmem/pkg/config"
	"github.com/codeready-toolchain/agentmem/pkg/ids"
	"github.com/codeready-toolchain/agentmem/pkg/models"
)

// consolidationStore is the subset of *store.Store this package
// depends on, kept narrow so tests can substitute a fake without a
// database.
type consolidationStore interface {
	TryLockTenantJob(ctx context.Context, tenantID, jobType string) (bool, func(), error)
	GetRunningJob(ctx context.Context, jobType models.JobType, tenantID string) (*models.Job, error)
	CreateJob(ctx context.Context, j models.Job) error
	CompleteJob(ctx context.Context, jobID string, status models.JobStatus, itemsProcessed, itemsAffected int, completedAt time.Time, jobErr string) error

	ListHandoffsForCompression(ctx context.Context, tenantID string, fromLevel models.CompressionLevel, cutoff time.Time, limit int) ([]models.Handoff, error)
	UpdateHandoffCompression(ctx context.Context, handoffID string, level models.CompressionLevel, experienced, noticed, learned, remember, story, becoming string) error
	MarkHandoffIntegrated(ctx context.Context, handoffID, noteID string) error
	GetIdentityThread(ctx context.Context, tenantID string) ([]models.Handoff, error)
	CreateKnowledgeNote(ctx context.Context, n models.KnowledgeNote) error
	CreateReflection(ctx context.Context, r models.Reflection) error

	ArchiveDecisionsOlderThan(ctx context.Context, tenantID string, cutoff time.Time, limit int) (int, error)

	ListActiveTenants(ctx context.Context) ([]string, error)
}

// Service runs consolidation jobs. Stateless aside from its
// dependencies; safe for concurrent use (the advisory lock, not an
// in-process mutex, is what prevents overlapping runs per tenant/job
// type).
type Service struct {
	store      consolidationStore
	summarizer Summarizer
	cfg        config.ConsolidationConfig
	log        *slog.Logger
}

// New builds a consolidation Service.
func New(store consolidationStore, summarizer Summarizer, cfg config.ConsolidationConfig, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, summarizer: summarizer, cfg: cfg, log: log}
}

// RunConsolidation runs one job type for one tenant end to end: lock,
// create the job row, run the type-specific operation, complete the
// job row, unlock. Returns Conflict if a run of this job type is
// already in progress for the tenant (§4.7, §6).
func (s *Service) RunConsolidation(ctx context.Context, tenantID string, jobType models.JobType) (*models.Job, error) {
	locked, unlock, err := s.store.TryLockTenantJob(ctx, tenantID, string(jobType))
	if err != nil {
		return nil, err
	}
	defer unlock()
	if !locked {
		return nil, apperr.Wrap(apperr.Conflict, fmt.Sprintf("%s consolidation already running for tenant", jobType))
	}

	if running, err := s.store.GetRunningJob(ctx, jobType, tenantID); err != nil {
		return nil, err
	} else if running != nil {
		return nil, apperr.Wrap(apperr.Conflict, fmt.Sprintf("%s consolidation already running for tenant", jobType))
	}

	job := models.Job{
		JobID:     ids.New(ids.PrefixJob),
		Type:      jobType,
		TenantID:  tenantID,
		Status:    models.JobRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	processed, affected, runErr := s.runJob(ctx, tenantID, jobType)

	completedAt := time.Now().UTC()
	status := models.JobSucceeded
	errMsg := ""
	if runErr != nil {
		status = models.JobFailed
		errMsg = runErr.Error()
		s.log.Error("consolidation job failed", "job_id", job.JobID, "type", jobType, "tenant_id", tenantID, "error", runErr)
	}
	if err := s.store.CompleteJob(ctx, job.JobID, status, processed, affected, completedAt, errMsg); err != nil {
		return nil, err
	}

	job.Status = status
	job.ItemsProcessed = processed
	job.ItemsAffected = affected
	job.CompletedAt = &completedAt
	job.Error = errMsg
	return &job, nil
}

// runJob dispatches to the type-specific operation. A "daily"/"weekly"
// job type bundles multiple operations per the §4.7 schedule table;
// "handoff_compression"/"decision_archival"/"identity_synthesis" run a
// single operation directly (used by tests and by manual/ad-hoc
// triggers).
func (s *Service) runJob(ctx context.Context, tenantID string, jobType models.JobType) (processed, affected int, err error) {
	switch jobType {
	case models.JobDaily:
		return s.compressHandoffs(ctx, tenantID, models.CompressionFull, models.CompressionSummary, ModeSummary, 500, s.cfg.HandoffsPerRun.Daily)
	case models.JobWeekly:
		p1, a1, err := s.compressHandoffs(ctx, tenantID, models.CompressionSummary, models.CompressionQuickRef, ModeQuickRef, 100, s.cfg.HandoffsPerRun.Weekly)
		if err != nil {
			return p1, a1, err
		}
		p2, a2, err := s.archiveDecisions(ctx, tenantID)
		return p1 + p2, a1 + a2, err
	case models.JobMonthly:
		p1, a1, err := s.compressHandoffs(ctx, tenantID, models.CompressionQuickRef, models.CompressionIntegrated, ModeIntegrated, 30, s.cfg.HandoffsPerRun.Monthly)
		if err != nil {
			return p1, a1, err
		}
		p2, a2, err := s.synthesizeIdentity(ctx, tenantID)
		return p1 + p2, a1 + a2, err
	case models.JobHandoffCompression:
		return s.compressHandoffs(ctx, tenantID, models.CompressionFull, models.CompressionSummary, ModeSummary, 500, s.cfg.HandoffsPerRun.Daily)
	case models.JobDecisionArchival:
		return s.archiveDecisions(ctx, tenantID)
	case models.JobIdentitySynthesis:
		return s.synthesizeIdentity(ctx, tenantID)
	default:
		return 0, 0, fmt.Errorf("unknown consolidation job type %q", jobType)
	}
}
