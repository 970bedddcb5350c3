package config

import "sync"

// BuiltinConfig holds the defaults this service ships with, mirroring
// every fixed table in the specification. It is computed once and
// cached, the way tarsy's GetBuiltinConfig does for its built-in agent
// and masking-pattern catalogs.
type BuiltinConfig struct {
	DefaultMaxTokens int

	SectionBudgets map[string]ModeBudgets // keyed by models.Mode string value
	IntentToMode   map[string]string      // intent -> models.Mode string value

	Retrieval  RetrievalConfig
	ToolResult ToolResultConfig
	Secret     SecretConfig

	Consolidation ConsolidationConfig
	Deadlines     DeadlinesConfig
	Retention     RetentionConfig

	Masking MaskingConfig
}

var (
	builtinOnce sync.Once
	builtin     *BuiltinConfig
)

// GetBuiltinConfig returns the process-wide built-in configuration,
// building it on first call.
func GetBuiltinConfig() *BuiltinConfig {
	builtinOnce.Do(func() {
		builtin = buildBuiltinConfig()
	})
	return builtin
}

func buildBuiltinConfig() *BuiltinConfig {
	return &BuiltinConfig{
		DefaultMaxTokens: 65000,

		// §4.5 section budget table, one row per mode.
		SectionBudgets: map[string]ModeBudgets{
			"GENERAL": {
				Identity: 1200, Rules: 6000, TaskState: 3000, RecentWindow: 8000,
				RelevantDecisions: 4000, RetrievedEvidence: 28000, Capsules: 4000, Reserve: 8800,
			},
			"TASK": {
				Identity: 1200, Rules: 10000, TaskState: 5000, RecentWindow: 2000,
				RelevantDecisions: 4000, RetrievedEvidence: 28000, Capsules: 4000, Reserve: 10800,
			},
			"EXPLORATION": {
				Identity: 1200, Rules: 3000, TaskState: 1000, RecentWindow: 15000,
				RelevantDecisions: 6000, RetrievedEvidence: 35000, Capsules: 2000, Reserve: 1800,
			},
			"DEBUGGING": {
				Identity: 1200, Rules: 5000, TaskState: 4000, RecentWindow: 12000,
				RelevantDecisions: 3000, RetrievedEvidence: 25000, Capsules: 0, Reserve: 14800,
			},
			"LEARNING": {
				Identity: 1200, Rules: 8000, TaskState: 0, RecentWindow: 2000,
				RelevantDecisions: 8000, RetrievedEvidence: 40000, Capsules: 2000, Reserve: 3800,
			},
		},

		// §4.5 mode-detection table.
		IntentToMode: map[string]string{
			"task":      "TASK",
			"implement": "TASK",
			"fix":       "TASK",

			"explore":     "EXPLORATION",
			"think":       "EXPLORATION",
			"brainstorm":  "EXPLORATION",

			"debug": "DEBUGGING",
			"error": "DEBUGGING",
			"trace": "DEBUGGING",

			"teach":   "LEARNING",
			"explain": "LEARNING",
			"how":     "LEARNING",
		},

		Retrieval: RetrievalConfig{
			CandidatePoolMax: 2000,
			ScoredMax:        200,
			RecencyTauDays:   14,
			Alpha:            0.6,
			Beta:             0.3,
			Gamma:            0.1,
		},

		ToolResult: ToolResultConfig{ExcerptBytesMax: 65536},

		// Open question in spec §9: source and docs disagree on the
		// default. This implementation defaults to redact (fail-open on
		// content, fail-closed on secrets via replacement) because
		// reject would otherwise silently drop entire messages in the
		// common case of a pasted log containing one incidental token;
		// operators that want hard rejection set secret.policy=reject.
		Secret: SecretConfig{Policy: SecretPolicyRedact},

		Consolidation: ConsolidationConfig{
			Enabled: true,
			HandoffsPerRun: HandoffsPerRun{
				Daily: 100, Weekly: 700, Monthly: 0, // 0 = unlimited
			},
			SummaryAfterDays:           30,
			QuickRefAfterDays:          90,
			IntegratedAfterDays:        180,
			ArchiveAfterDays:           60,
			IdentitySynthesisMinBucket: 10,
			BatchSize:                  50,
			Schedule: map[string]string{
				"daily":   "0 2 * * *",
				"weekly":  "0 3 * * 0",
				"monthly": "0 4 1 * *",
			},
		},

		Deadlines: DeadlinesConfig{
			WriteSeconds:        30,
			ACBFastSeconds:      5,
			ACBRetrievalSeconds: 15,
		},

		Retention: RetentionConfig{
			CapsuleSweepInterval: 0, // 0 = the cleanup service's 1h fallback (cleanup.Service.run)
		},

		Masking: builtinMaskingConfig(),
	}
}

// builtinMaskingConfig is the secret-scan pattern catalog used by
// pkg/masking. Grounded on tarsy's pkg/masking/pattern.go built-in
// pattern table, narrowed to the patterns the specification names
// explicitly (API-key-like tokens, bearer tokens, password fields).
func builtinMaskingConfig() MaskingConfig {
	return MaskingConfig{
		Patterns: map[string]MaskingPattern{
			"bearer_token": {
				Pattern:     `(?i)\bBearer\s+[A-Za-z0-9\-_\.=]{8,}`,
				Replacement: "Bearer [SECRET_REDACTED]",
				Description: "HTTP Bearer authorization token",
			},
			"api_key_assignment": {
				Pattern:     `(?i)\b(api[_-]?key|apikey|secret[_-]?key|access[_-]?token)\s*[:=]\s*["']?[A-Za-z0-9\-_\.]{8,}["']?`,
				Replacement: "$1: [SECRET_REDACTED]",
				Description: "api_key/secret_key/access_token style assignment",
			},
			"password_field": {
				Pattern:     `(?i)\bpassword\s*[:=]\s*["']?\S+["']?`,
				Replacement: "password: [SECRET_REDACTED]",
				Description: "password: field",
			},
			"generic_secret_token": {
				Pattern:     `\b(sk|pk|ghp|gho|ghu|ghs|xox[baprs])-[A-Za-z0-9]{10,}\b`,
				Replacement: "[SECRET_REDACTED]",
				Description: "vendor-prefixed secret token (sk-, ghp-, xoxb-, ...)",
			},
		},
		PatternGroups: map[string][]string{
			"secrets": {"bearer_token", "api_key_assignment", "password_field", "generic_secret_token"},
		},
	}
}
