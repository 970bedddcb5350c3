package models

import "time"

// JobType enumerates the consolidation job kinds scheduled by C7.
type JobType string

const (
	JobDaily              JobType = "daily"
	JobWeekly             JobType = "weekly"
	JobMonthly            JobType = "monthly"
	JobHandoffCompression JobType = "handoff_compression"
	JobDecisionArchival   JobType = "decision_archival"
	JobIdentitySynthesis  JobType = "identity_synthesis"
)

// JobStatus tracks a consolidation job run's lifecycle.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job audits one consolidation run.
type Job struct {
	JobID    string  `json:"job_id"`
	Type     JobType `json:"type"`
	TenantID string  `json:"tenant_id,omitempty"`

	Status JobStatus `json:"status"`

	ItemsProcessed int `json:"items_processed"`
	ItemsAffected  int `json:"items_affected"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Reflection is the synthesized output of identity-thread consolidation
// over a tenant's becoming statements for a period.
type Reflection struct {
	ReflectionID string `json:"reflection_id"`
	TenantID     string `json:"tenant_id"`

	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`

	SessionCount int `json:"session_count"`

	Summary          string   `json:"summary"`
	KeyInsights      []string `json:"key_insights,omitempty"`
	Themes           []string `json:"themes,omitempty"`
	IdentityEvolution string  `json:"identity_evolution,omitempty"`

	SourceHandoffs []string `json:"source_handoffs"`

	CreatedAt time.Time `json:"created_at"`
}
