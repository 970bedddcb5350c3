// Package config loads, merges, and validates agentmem's YAML
// configuration, following the same load -> expand -> merge -> validate
// pipeline as tarsy's pkg/config (Initialize is the sole entry point).
package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codeready-toolchain/agentmem/pkg/models"
)

// Config is the fully resolved, validated configuration used by every
// subsystem. Always constructed via Initialize; never a package-level
// global (§9 — explicit configuration structs threaded through, not
// process-globals).
type Config struct {
	configDir string

	DefaultMaxTokens int
	SectionBudgets   map[models.Mode]ModeBudgets
	IntentToMode     map[string]models.Mode

	Retrieval  RetrievalConfig
	ToolResult ToolResultConfig
	Secret     SecretConfig

	Consolidation ConsolidationConfig
	Deadlines     DeadlinesConfig
	Retention     RetentionConfig

	Masking MaskingConfig
}

// YAMLConfig mirrors the on-disk agentmem.yaml shape. Every field is a
// pointer or zero-valued map so an absent section falls back entirely to
// the built-in defaults during merge.
type YAMLConfig struct {
	DefaultMaxTokens *int                    `yaml:"default_max_tokens,omitempty"`
	SectionBudgets   map[string]ModeBudgets  `yaml:"section_budgets,omitempty"`
	Retrieval        *RetrievalConfig        `yaml:"retrieval,omitempty"`
	ToolResult       *ToolResultConfig       `yaml:"tool_result,omitempty"`
	Secret           *SecretConfig           `yaml:"secret,omitempty"`
	Consolidation    *ConsolidationConfig    `yaml:"consolidation,omitempty"`
	Deadlines        *DeadlinesConfig        `yaml:"deadlines,omitempty"`
	Retention        *RetentionConfig        `yaml:"retention,omitempty"`
	Masking          *MaskingConfig          `yaml:"masking,omitempty"`
}

// Stats summarizes the loaded configuration for startup logging, the way
// tarsy's cfg.Stats() reports agent/chain/mcp_server/llm_provider counts.
type Stats struct {
	Modes               int
	MaskingPatterns     int
	MaskingPatternGroups int
	ConsolidationJobs   int
}

// Stats returns a summary of the loaded configuration.
func (c *Config) Stats() Stats {
	return Stats{
		Modes:                len(c.SectionBudgets),
		MaskingPatterns:      len(c.Masking.Patterns),
		MaskingPatternGroups: len(c.Masking.PatternGroups),
		ConsolidationJobs:    len(c.Consolidation.Schedule),
	}
}

// ModeBudgetsFor returns the section budgets for mode, falling back to
// GENERAL if the mode is somehow unconfigured (should not happen once
// validated).
func (c *Config) ModeBudgetsFor(mode models.Mode) ModeBudgets {
	if b, ok := c.SectionBudgets[mode]; ok {
		return b
	}
	return c.SectionBudgets[models.ModeGeneral]
}

// DetectMode maps an ACB request's intent to a mode per §4.5, falling
// back to GENERAL for any unmapped or empty intent.
func (c *Config) DetectMode(intent string) models.Mode {
	if m, ok := c.IntentToMode[intent]; ok {
		return m
	}
	return models.ModeGeneral
}

// Initialize loads, validates, and returns ready-to-use configuration.
// Mirrors tarsy's config.Initialize: load -> validate -> return.
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("configuration initialized",
		"modes", stats.Modes,
		"masking_patterns", stats.MaskingPatterns,
		"masking_pattern_groups", stats.MaskingPatternGroups,
		"consolidation_jobs", stats.ConsolidationJobs)

	return cfg, nil
}
