package masking

import (
	"log/slog"
	"regexp"

	"github.com/codeready-toolchain/agentmem/pkg/config"
)

// CompiledPattern holds a pre-compiled regex pattern with its replacement.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
	Description string
}

// compilePatterns compiles every built-in and operator-configured
// pattern. Invalid patterns are logged and skipped rather than failing
// construction — masking degrades gracefully instead of taking down
// ingestion.
func compilePatterns(cfg config.MaskingConfig, log *slog.Logger) map[string]*CompiledPattern {
	out := make(map[string]*CompiledPattern, len(cfg.Patterns))
	for name, p := range cfg.Patterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			log.Error("failed to compile masking pattern, skipping", "pattern", name, "error", err)
			continue
		}
		out[name] = &CompiledPattern{Name: name, Regex: re, Replacement: p.Replacement, Description: p.Description}
	}
	return out
}

// resolveGroup expands a pattern group name into its compiled patterns,
// falling back to every compiled pattern when groupName is empty (the
// secret scan applies the full catalog, not a named subset).
func resolveGroup(patterns map[string]*CompiledPattern, groups map[string][]string, groupName string) []*CompiledPattern {
	if groupName == "" {
		out := make([]*CompiledPattern, 0, len(patterns))
		for _, p := range patterns {
			out = append(out, p)
		}
		return out
	}
	names, ok := groups[groupName]
	if !ok {
		return nil
	}
	out := make([]*CompiledPattern, 0, len(names))
	for _, name := range names {
		if p, ok := patterns[name]; ok {
			out = append(out, p)
		}
	}
	return out
}
