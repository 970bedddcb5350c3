package consolidation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/codeready-toolchain/agentmem/pkg/apperr"
	"github.com/codeready-toolchain/agentmem/pkg/models"
)

// jobTypesBySchedule maps the config.ConsolidationConfig.Schedule keys
// to the job type they drive.
var jobTypesBySchedule = map[string]models.JobType{
	"daily":   models.JobDaily,
	"weekly":  models.JobWeekly,
	"monthly": models.JobMonthly,
}

// Scheduler fans RunConsolidation out across every active tenant on the
// cron(5) schedule configured per job type (§4.7, §5). One tenant's
// failure or lock conflict never blocks another's.
type Scheduler struct {
	svc      *Service
	schedule map[string]string
	log      *slog.Logger
	cron     *cron.Cron
}

// NewScheduler builds a Scheduler. schedule maps "daily"/"weekly"/
// "monthly" to a cron(5) expression, validated at config load time
// (see config.validate).
func NewScheduler(svc *Service, schedule map[string]string, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		svc:      svc,
		schedule: schedule,
		log:      log,
		cron:     cron.New(cron.WithLocation(time.UTC)),
	}
}

// Start registers one cron entry per configured job type and begins
// running them. Safe to call once; subsequent calls are no-ops.
func (s *Scheduler) Start(ctx context.Context) error {
	if len(s.cron.Entries()) > 0 {
		return nil
	}
	for name, expr := range s.schedule {
		jobType, ok := jobTypesBySchedule[name]
		if !ok {
			continue
		}
		jobType := jobType
		if _, err := s.cron.AddFunc(expr, func() { s.runForAllTenants(ctx, jobType) }); err != nil {
			return err
		}
	}
	s.cron.Start()
	s.log.Info("consolidation scheduler started", "jobs", len(s.schedule))
	return nil
}

// Stop blocks until any in-flight runs finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("consolidation scheduler stopped")
}

func (s *Scheduler) runForAllTenants(ctx context.Context, jobType models.JobType) {
	tenants, err := s.svc.store.ListActiveTenants(ctx)
	if err != nil {
		s.log.Error("consolidation scheduler: list tenants failed", "job_type", jobType, "error", err)
		return
	}

	for _, tenantID := range tenants {
		job, err := s.svc.RunConsolidation(ctx, tenantID, jobType)
		if err != nil {
			if errors.Is(err, apperr.Conflict) {
				s.log.Debug("consolidation already running, skipping", "tenant_id", tenantID, "job_type", jobType)
				continue
			}
			s.log.Error("consolidation run failed", "tenant_id", tenantID, "job_type", jobType, "error", err)
			continue
		}
		s.log.Info("consolidation run complete", "tenant_id", tenantID, "job_type", jobType,
			"items_processed", job.ItemsProcessed, "items_affected", job.ItemsAffected, "status", job.Status)
	}
}
