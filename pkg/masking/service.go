// Package masking implements the ingestion pipeline's secret scan and
// redaction step (§4.2 step 2), adapted from tarsy's pkg/masking. It
// drops the MCP-server-registry coupling and Kubernetes-Secret code
// masker — this service applies one fixed regex catalog to every
// ingested event, rather than per-server custom patterns.
package masking

import (
	"log/slog"
	"sort"

	"github.com/codeready-toolchain/agentmem/pkg/apperr"
	"github.com/codeready-toolchain/agentmem/pkg/config"
)

// Service scans event content for secrets and either redacts or
// rejects it, per config.SecretConfig.Policy. Created once at startup
// from the tenant's effective masking config; thread-safe and
// stateless aside from its compiled patterns.
type Service struct {
	patterns      map[string]*CompiledPattern
	patternGroups map[string][]string
	policy        config.SecretPolicy
	log           *slog.Logger
}

// New compiles cfg's pattern catalog eagerly. Invalid patterns are
// logged and skipped rather than failing construction.
func New(cfg config.MaskingConfig, policy config.SecretPolicy, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		patterns:      compilePatterns(cfg, log),
		patternGroups: cfg.PatternGroups,
		policy:        policy,
		log:           log,
	}
}

// Scan reports how many distinct secrets match content across the
// "secrets" group, without modifying it. Patterns in the group can
// overlap (e.g. generic_secret_token matching the vendor-prefixed
// token nested inside a bearer_token match); overlapping spans are
// merged so one secret is counted once regardless of how many
// patterns matched it.
func (s *Service) Scan(content string) int {
	if content == "" {
		return 0
	}
	var spans [][2]int
	for _, p := range resolveGroup(s.patterns, s.patternGroups, "secrets") {
		spans = append(spans, p.Regex.FindAllStringIndex(content, -1)...)
	}
	return countMergedSpans(spans)
}

// countMergedSpans counts non-overlapping runs in a set of [start,end)
// spans, merging any that overlap.
func countMergedSpans(spans [][2]int) int {
	if len(spans) == 0 {
		return 0
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i][0] < spans[j][0] })
	count := 1
	end := spans[0][1]
	for _, sp := range spans[1:] {
		if sp[0] < end {
			if sp[1] > end {
				end = sp[1]
			}
			continue
		}
		count++
		end = sp[1]
	}
	return count
}

// Redact replaces every secret-pattern match in content with its
// configured placeholder.
func (s *Service) Redact(content string) string {
	masked := content
	for _, p := range resolveGroup(s.patterns, s.patternGroups, "secrets") {
		masked = p.Regex.ReplaceAllString(masked, p.Replacement)
	}
	return masked
}

// ScanAndRedact applies the configured secret policy to content: under
// "redact" it returns the redacted text; under "reject" any match
// fails ingestion with apperr.SensitiveContentError (§4.2 step 2,
// §6 errors table).
func (s *Service) ScanAndRedact(content string) (string, error) {
	matches := s.Scan(content)
	if matches == 0 {
		return content, nil
	}
	if s.policy == config.SecretPolicyReject {
		return "", apperr.Wrap(&apperr.SensitiveContentError{Matches: matches}, "secret scan")
	}
	return s.Redact(content), nil
}

// MaskAlertData applies the full pattern catalog to data, failing open
// (returning the original data) if no patterns are configured. Unlike
// ScanAndRedact it never rejects, whatever the secret policy.
func (s *Service) MaskAlertData(data string) string {
	if data == "" {
		return data
	}
	patterns := resolveGroup(s.patterns, s.patternGroups, "")
	if len(patterns) == 0 {
		return data
	}
	masked := data
	for _, p := range patterns {
		masked = p.Regex.ReplaceAllString(masked, p.Replacement)
	}
	return masked
}
