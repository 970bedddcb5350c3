package config

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/codeready-toolchain/agentmem/pkg/models"
)

// validate performs comprehensive validation on loaded configuration,
// mirroring tarsy's validator.ValidateAll() composition of per-section
// checks.
func validate(cfg *Config) error {
	if cfg.DefaultMaxTokens < 0 {
		return NewValidationError("config", "default_max_tokens", fmt.Errorf("must be >= 0"))
	}

	for _, mode := range []models.Mode{models.ModeGeneral, models.ModeTask, models.ModeExploration, models.ModeDebugging, models.ModeLearning} {
		b, ok := cfg.SectionBudgets[mode]
		if !ok {
			return NewValidationError("section_budgets", string(mode), fmt.Errorf("missing budget row"))
		}
		if err := validateModeBudgets(b); err != nil {
			return NewValidationError("section_budgets", string(mode), err)
		}
	}

	if cfg.Retrieval.CandidatePoolMax <= 0 {
		return NewValidationError("retrieval", "candidate_pool_max", fmt.Errorf("must be > 0"))
	}
	if cfg.Retrieval.ScoredMax <= 0 || cfg.Retrieval.ScoredMax > cfg.Retrieval.CandidatePoolMax {
		return NewValidationError("retrieval", "scored_max", fmt.Errorf("must be > 0 and <= candidate_pool_max"))
	}
	if cfg.Retrieval.RecencyTauDays <= 0 {
		return NewValidationError("retrieval", "recency_tau_days", fmt.Errorf("must be > 0"))
	}

	if cfg.ToolResult.ExcerptBytesMax <= 0 {
		return NewValidationError("tool_result", "excerpt_bytes_max", fmt.Errorf("must be > 0"))
	}

	switch cfg.Secret.Policy {
	case SecretPolicyRedact, SecretPolicyReject:
	default:
		return NewValidationError("secret", "policy", fmt.Errorf("must be 'redact' or 'reject', got %q", cfg.Secret.Policy))
	}

	if cfg.Consolidation.BatchSize <= 0 {
		return NewValidationError("consolidation", "batch_size", fmt.Errorf("must be > 0"))
	}
	if cfg.Consolidation.IdentitySynthesisMinBucket <= 0 {
		return NewValidationError("consolidation", "identity_synthesis_min_bucket", fmt.Errorf("must be > 0"))
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	for job, expr := range cfg.Consolidation.Schedule {
		if _, err := parser.Parse(expr); err != nil {
			return NewValidationError("consolidation.schedule", job, fmt.Errorf("invalid cron expression %q: %w", expr, err))
		}
	}

	if cfg.Deadlines.WriteSeconds <= 0 || cfg.Deadlines.ACBFastSeconds <= 0 || cfg.Deadlines.ACBRetrievalSeconds <= 0 {
		return NewValidationError("deadlines", "", fmt.Errorf("all deadlines must be > 0 seconds"))
	}

	for name, pat := range cfg.Masking.Patterns {
		if pat.Pattern == "" {
			return NewValidationError("masking.patterns", name, fmt.Errorf("empty regex pattern"))
		}
	}
	for group, names := range cfg.Masking.PatternGroups {
		for _, n := range names {
			if _, ok := cfg.Masking.Patterns[n]; !ok {
				return NewValidationError("masking.pattern_groups", group, fmt.Errorf("references unknown pattern %q", n))
			}
		}
	}

	return nil
}

func validateModeBudgets(b ModeBudgets) error {
	for name, v := range map[string]int{
		"identity": b.Identity, "rules": b.Rules, "task_state": b.TaskState,
		"recent_window": b.RecentWindow, "relevant_decisions": b.RelevantDecisions,
		"retrieved_evidence": b.RetrievedEvidence, "capsules": b.Capsules, "reserve": b.Reserve,
	} {
		if v < 0 {
			return fmt.Errorf("%s must be >= 0, got %d", name, v)
		}
	}
	return nil
}
