package masking

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/agentmem/pkg/config"
)

func TestCompilePatternsSkipsInvalidRegex(t *testing.T) {
	cfg := config.MaskingConfig{
		Patterns: map[string]config.MaskingPattern{
			"good": {Pattern: `[a-z]+`, Replacement: "[X]"},
			"bad":  {Pattern: `[`, Replacement: "[X]"},
		},
	}
	compiled := compilePatterns(cfg, slog.Default())
	require.Len(t, compiled, 1)
	require.Contains(t, compiled, "good")
}

func TestResolveGroupFallsBackToAllWhenNameEmpty(t *testing.T) {
	cfg := config.MaskingConfig{
		Patterns: map[string]config.MaskingPattern{
			"a": {Pattern: `a`, Replacement: "A"},
			"b": {Pattern: `b`, Replacement: "B"},
		},
	}
	compiled := compilePatterns(cfg, slog.Default())
	all := resolveGroup(compiled, nil, "")
	require.Len(t, all, 2)
}

func TestResolveGroupByName(t *testing.T) {
	cfg := config.MaskingConfig{
		Patterns: map[string]config.MaskingPattern{
			"a": {Pattern: `a`, Replacement: "A"},
			"b": {Pattern: `b`, Replacement: "B"},
		},
		PatternGroups: map[string][]string{"subset": {"a"}},
	}
	compiled := compilePatterns(cfg, slog.Default())
	subset := resolveGroup(compiled, cfg.PatternGroups, "subset")
	require.Len(t, subset, 1)
	require.Equal(t, "a", subset[0].Name)

	require.Nil(t, resolveGroup(compiled, cfg.PatternGroups, "missing"))
}
