package config

import "time"

// SecretPolicy controls how the ingestion pipeline's secret scan (§4.2
// step 2) handles a detected secret.
type SecretPolicy string

const (
	SecretPolicyRedact SecretPolicy = "redact"
	SecretPolicyReject SecretPolicy = "reject"
)

// ModeBudgets is one row of the §4.5 section-budget table: the token
// budget for each fixed section under one mode, plus the mode's reserve
// floor (informational; the orchestrator enforces per-section and total
// budgets, not the reserve itself).
type ModeBudgets struct {
	Identity           int `yaml:"identity"`
	Rules              int `yaml:"rules"`
	TaskState          int `yaml:"task_state"`
	RecentWindow       int `yaml:"recent_window"`
	RelevantDecisions  int `yaml:"relevant_decisions"`
	RetrievedEvidence  int `yaml:"retrieved_evidence"`
	Capsules           int `yaml:"capsules"`
	Reserve            int `yaml:"reserve"`
}

// RetrievalConfig holds the Retrieval Engine's hard caps (§4.4, §6).
type RetrievalConfig struct {
	CandidatePoolMax int `yaml:"candidate_pool_max"`
	ScoredMax        int `yaml:"scored_max"`
	RecencyTauDays   float64 `yaml:"recency_tau_days"`
	Alpha            float64 `yaml:"alpha"`
	Beta             float64 `yaml:"beta"`
	Gamma            float64 `yaml:"gamma"`
}

// ToolResultConfig bounds tool-result excerpt size before artifact
// offload (§4.2 step 3, §6).
type ToolResultConfig struct {
	ExcerptBytesMax int `yaml:"excerpt_bytes_max"`
}

// SecretConfig configures the ingestion secret scan.
type SecretConfig struct {
	Policy SecretPolicy `yaml:"policy"`
}

// HandoffsPerRun bounds the per-run handoff batch size for each
// consolidation schedule (§4.7, §6). Zero means unlimited.
type HandoffsPerRun struct {
	Daily   int `yaml:"daily"`
	Weekly  int `yaml:"weekly"`
	Monthly int `yaml:"monthly"`
}

// ConsolidationConfig drives the consolidation scheduler (§4.7).
type ConsolidationConfig struct {
	Enabled        bool           `yaml:"enabled"`
	HandoffsPerRun HandoffsPerRun `yaml:"handoffs_per_run"`

	// Age thresholds, in days, for each compression/archival transition.
	SummaryAfterDays    int `yaml:"summary_after_days"`
	QuickRefAfterDays   int `yaml:"quick_ref_after_days"`
	IntegratedAfterDays int `yaml:"integrated_after_days"`
	ArchiveAfterDays    int `yaml:"archive_after_days"`

	// IdentitySynthesisMinBucket is the minimum number of becoming
	// statements in a theme bucket before a Knowledge Note is synthesized.
	IdentitySynthesisMinBucket int `yaml:"identity_synthesis_min_bucket"`

	// BatchSize is the consolidation checkpoint granularity (§5).
	BatchSize int `yaml:"batch_size"`

	// Schedule is the cron(5) expression for each job type, UTC.
	Schedule map[string]string `yaml:"schedule"`
}

// DeadlinesConfig holds the default per-operation deadlines (§5, §6).
type DeadlinesConfig struct {
	WriteSeconds        int `yaml:"write_s"`
	ACBFastSeconds      int `yaml:"acb_fast_s"`
	ACBRetrievalSeconds int `yaml:"acb_retrieval_s"`
}

func (d DeadlinesConfig) Write() time.Duration {
	return time.Duration(d.WriteSeconds) * time.Second
}

func (d DeadlinesConfig) ACBFast() time.Duration {
	return time.Duration(d.ACBFastSeconds) * time.Second
}

func (d DeadlinesConfig) ACBRetrieval() time.Duration {
	return time.Duration(d.ACBRetrievalSeconds) * time.Second
}

// RetentionConfig governs the periodic capsule-expiry sweep (SPEC_FULL §C).
type RetentionConfig struct {
	CapsuleSweepInterval time.Duration `yaml:"capsule_sweep_interval"`
}

// MaskingPattern is a single regex-based secret-detection rule.
type MaskingPattern struct {
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
	Description string `yaml:"description,omitempty"`
}

// MaskingConfig holds the secret-scan pattern catalog (§4.2 step 2),
// grouped the way tarsy groups MCP masking patterns.
type MaskingConfig struct {
	Patterns      map[string]MaskingPattern `yaml:"patterns"`
	PatternGroups map[string][]string       `yaml:"pattern_groups"`
}
