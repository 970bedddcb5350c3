package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/codeready-toolchain/agentmem/pkg/models"
)

const configFileName = "agentmem.yaml"

// load reads agentmem.yaml (if present) from configDir, expands
// environment variables, and merges it over the built-in defaults.
// A missing config file is not an error: the service runs entirely on
// built-in defaults, matching tarsy's "user overrides built-in" merge
// philosophy.
func load(_ context.Context, configDir string) (*Config, error) {
	yamlCfg, err := loadYAML(configDir)
	if err != nil {
		return nil, err
	}

	b := GetBuiltinConfig()

	cfg := &Config{
		configDir:        configDir,
		DefaultMaxTokens: b.DefaultMaxTokens,
		SectionBudgets:   stringKeyedBudgets(b.SectionBudgets),
		IntentToMode:     stringKeyedModes(b.IntentToMode),
		Retrieval:        b.Retrieval,
		ToolResult:       b.ToolResult,
		Secret:           b.Secret,
		Consolidation:    cloneConsolidation(b.Consolidation),
		Deadlines:        b.Deadlines,
		Retention:        b.Retention,
		Masking:          cloneMasking(b.Masking),
	}

	if yamlCfg.DefaultMaxTokens != nil {
		cfg.DefaultMaxTokens = *yamlCfg.DefaultMaxTokens
	}
	for mode, budgets := range yamlCfg.SectionBudgets {
		cfg.SectionBudgets[models.Mode(mode)] = budgets
	}
	if yamlCfg.Retrieval != nil {
		if err := mergo.Merge(&cfg.Retrieval, *yamlCfg.Retrieval, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge retrieval config: %w", err)
		}
	}
	if yamlCfg.ToolResult != nil {
		if err := mergo.Merge(&cfg.ToolResult, *yamlCfg.ToolResult, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge tool_result config: %w", err)
		}
	}
	if yamlCfg.Secret != nil {
		if err := mergo.Merge(&cfg.Secret, *yamlCfg.Secret, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge secret config: %w", err)
		}
	}
	if yamlCfg.Consolidation != nil {
		if err := mergo.Merge(&cfg.Consolidation, *yamlCfg.Consolidation, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge consolidation config: %w", err)
		}
	}
	if yamlCfg.Deadlines != nil {
		if err := mergo.Merge(&cfg.Deadlines, *yamlCfg.Deadlines, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge deadlines config: %w", err)
		}
	}
	if yamlCfg.Retention != nil {
		if err := mergo.Merge(&cfg.Retention, *yamlCfg.Retention, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge retention config: %w", err)
		}
	}
	if yamlCfg.Masking != nil {
		if len(yamlCfg.Masking.Patterns) > 0 {
			for name, p := range yamlCfg.Masking.Patterns {
				cfg.Masking.Patterns[name] = p
			}
		}
		for group, names := range yamlCfg.Masking.PatternGroups {
			cfg.Masking.PatternGroups[group] = names
		}
	}

	return cfg, nil
}

func loadYAML(configDir string) (*YAMLConfig, error) {
	path := filepath.Join(configDir, configFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &YAMLConfig{}, nil
		}
		return nil, NewLoadError(configFileName, err)
	}

	expanded := ExpandEnv(data)

	var cfg YAMLConfig
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, NewLoadError(configFileName, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}
	return &cfg, nil
}

func stringKeyedBudgets(in map[string]ModeBudgets) map[models.Mode]ModeBudgets {
	out := make(map[models.Mode]ModeBudgets, len(in))
	for k, v := range in {
		out[models.Mode(k)] = v
	}
	return out
}

func stringKeyedModes(in map[string]string) map[string]models.Mode {
	out := make(map[string]models.Mode, len(in))
	for k, v := range in {
		out[k] = models.Mode(v)
	}
	return out
}

func cloneMasking(in MaskingConfig) MaskingConfig {
	patterns := make(map[string]MaskingPattern, len(in.Patterns))
	for k, v := range in.Patterns {
		patterns[k] = v
	}
	groups := make(map[string][]string, len(in.PatternGroups))
	for k, v := range in.PatternGroups {
		groups[k] = append([]string(nil), v...)
	}
	return MaskingConfig{Patterns: patterns, PatternGroups: groups}
}

func cloneConsolidation(in ConsolidationConfig) ConsolidationConfig {
	out := in
	out.Schedule = make(map[string]string, len(in.Schedule))
	for k, v := range in.Schedule {
		out.Schedule[k] = v
	}
	return out
}
