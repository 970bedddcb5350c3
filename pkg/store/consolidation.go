package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/codeready-toolchain/agentmem/pkg/apperr"
	"github.com/codeready-toolchain/agentmem/pkg/models"
)

// CreateJob inserts a running consolidation job row (§4.7 job lifecycle).
func (s *Store) CreateJob(ctx context.Context, j models.Job) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO consolidation_jobs (job_id, type, tenant_id, status, started_at)
		VALUES ($1,$2,$3,$4,$5)`,
		j.JobID, string(j.Type), j.TenantID, string(j.Status), j.StartedAt,
	)
	if err != nil {
		return wrapBackend("insert consolidation job", err)
	}
	return nil
}

// CompleteJob records the final counters/status/completed_at for a job
// run, success or failure; failures leave the job as failed without
// blocking future runs (§4.7).
func (s *Store) CompleteJob(ctx context.Context, jobID string, status models.JobStatus, itemsProcessed, itemsAffected int, completedAt time.Time, jobErr string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE consolidation_jobs
		SET status = $1, items_processed = $2, items_affected = $3, completed_at = $4, error = $5
		WHERE job_id = $6`,
		string(status), itemsProcessed, itemsAffected, completedAt, jobErr, jobID,
	)
	if err != nil {
		return wrapBackend("complete consolidation job", err)
	}
	return nil
}

// GetRunningJob reports whether a job of the given type is currently
// running for tenantID, used by run_consolidation's Conflict check
// ("already running", §6) in addition to the Postgres advisory lock
// (TryLockTenantJob).
func (s *Store) GetRunningJob(ctx context.Context, jobType models.JobType, tenantID string) (*models.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT job_id, type, tenant_id, status, items_processed, items_affected, started_at, completed_at, error
		FROM consolidation_jobs
		WHERE type = $1 AND tenant_id = $2 AND status = 'running'
		ORDER BY started_at DESC LIMIT 1`, string(jobType), tenantID)

	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapBackend("get running job", err)
	}
	return j, nil
}

// GetJob returns a job record by ID, used by run_consolidation's
// immediate result and by tests asserting job completion.
func (s *Store) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT job_id, type, tenant_id, status, items_processed, items_affected, started_at, completed_at, error
		FROM consolidation_jobs WHERE job_id = $1`, jobID)

	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound
	}
	if err != nil {
		return nil, wrapBackend("get job", err)
	}
	return j, nil
}

// CreateReflection inserts an identity-synthesis reflection (§4.7).
func (s *Store) CreateReflection(ctx context.Context, r models.Reflection) error {
	insights, _ := json.Marshal(r.KeyInsights)
	themes, _ := json.Marshal(r.Themes)
	source, _ := json.Marshal(r.SourceHandoffs)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reflections
			(reflection_id, tenant_id, period_start, period_end, session_count, summary,
			 key_insights, themes, identity_evolution, source_handoffs)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		r.ReflectionID, r.TenantID, r.PeriodStart, r.PeriodEnd, r.SessionCount, r.Summary,
		insights, themes, r.IdentityEvolution, source,
	)
	if err != nil {
		return wrapBackend("insert reflection", err)
	}
	return nil
}

func scanJob(row rowScanner) (*models.Job, error) {
	var j models.Job
	var jobType, status string
	var tenantID sql.NullString
	var completedAt sql.NullTime
	var jobErr sql.NullString

	err := row.Scan(&j.JobID, &jobType, &tenantID, &status, &j.ItemsProcessed, &j.ItemsAffected, &j.StartedAt, &completedAt, &jobErr)
	if err != nil {
		return nil, err
	}
	j.Type = models.JobType(jobType)
	j.Status = models.JobStatus(status)
	if tenantID.Valid {
		j.TenantID = tenantID.String
	}
	if completedAt.Valid {
		t := completedAt.Time
		j.CompletedAt = &t
	}
	if jobErr.Valid {
		j.Error = jobErr.String
	}
	return &j, nil
}
