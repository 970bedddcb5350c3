package masking_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/agentmem/pkg/apperr"
	"github.com/codeready-toolchain/agentmem/pkg/config"
	"github.com/codeready-toolchain/agentmem/pkg/masking"
)

func testConfig() config.MaskingConfig {
	return config.MaskingConfig{
		Patterns: map[string]config.MaskingPattern{
			"bearer_token": {
				Pattern:     `(?i)bearer\s+[a-z0-9._-]+`,
				Replacement: "bearer [REDACTED]",
			},
			"api_key_assignment": {
				Pattern:     `(?i)(api[_-]?key\s*[:=]\s*)[^\s,;]+`,
				Replacement: "${1}[REDACTED]",
			},
		},
		PatternGroups: map[string][]string{
			"secrets": {"bearer_token", "api_key_assignment"},
		},
	}
}

func TestRedactMasksAllConfiguredPatterns(t *testing.T) {
	s := masking.New(testConfig(), config.SecretPolicyRedact, nil)

	out := s.Redact("Authorization: Bearer abc123.def456 and api_key=sk-live-xyz")
	require.Contains(t, out, "bearer [REDACTED]")
	require.Contains(t, out, "api_key=[REDACTED]")
	require.NotContains(t, out, "abc123")
	require.NotContains(t, out, "sk-live-xyz")
}

func TestScanCountsMatches(t *testing.T) {
	s := masking.New(testConfig(), config.SecretPolicyRedact, nil)

	require.Equal(t, 0, s.Scan("nothing sensitive here"))
	require.Equal(t, 2, s.Scan("Bearer tok1 api_key=tok2"))
}

// TestScanMergesOverlappingPatternMatches reproduces S4 against the
// actual shipped builtin catalog (config.GetBuiltinConfig), where
// bearer_token and generic_secret_token both match the same
// "Bearer sk-..." token — one nested inside the other. Scan must
// count that as a single redaction, not two.
func TestScanMergesOverlappingPatternMatches(t *testing.T) {
	cfg := config.GetBuiltinConfig().Masking
	s := masking.New(cfg, config.SecretPolicyRedact, nil)

	require.Equal(t, 1, s.Scan("Bearer sk-abc123def456 please use this"))
}

func TestScanAndRedactReplacesOverlappingMatchOnceAgainstBuiltinCatalog(t *testing.T) {
	cfg := config.GetBuiltinConfig().Masking
	s := masking.New(cfg, config.SecretPolicyRedact, nil)

	out, err := s.ScanAndRedact("Bearer sk-abc123def456 please use this")
	require.NoError(t, err)
	require.Equal(t, "Bearer [SECRET_REDACTED] please use this", out)
}

func TestScanAndRedactUnderRedactPolicy(t *testing.T) {
	s := masking.New(testConfig(), config.SecretPolicyRedact, nil)

	out, err := s.ScanAndRedact("api_key=topsecret")
	require.NoError(t, err)
	require.Equal(t, "api_key=[REDACTED]", out)
}

func TestScanAndRedactUnderRejectPolicy(t *testing.T) {
	s := masking.New(testConfig(), config.SecretPolicyReject, nil)

	_, err := s.ScanAndRedact("api_key=topsecret")
	require.Error(t, err)
	require.ErrorIs(t, err, apperr.SensitiveContent)

	var sensitiveErr *apperr.SensitiveContentError
	require.ErrorAs(t, err, &sensitiveErr)
	require.Equal(t, 1, sensitiveErr.Matches)
}

func TestScanAndRedactPassesThroughCleanContent(t *testing.T) {
	s := masking.New(testConfig(), config.SecretPolicyReject, nil)

	out, err := s.ScanAndRedact("just a normal message")
	require.NoError(t, err)
	require.Equal(t, "just a normal message", out)
}

func TestMaskAlertDataFailsOpenWithNoPatterns(t *testing.T) {
	s := masking.New(config.MaskingConfig{}, config.SecretPolicyRedact, nil)
	require.Equal(t, "api_key=topsecret", s.MaskAlertData("api_key=topsecret"))
}
