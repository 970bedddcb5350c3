package consolidation

import "context"

// SummaryMode names the compression target consolidation asks the
// Summarizer to produce (§6 capability: Summarizer).
type SummaryMode string

const (
	ModeSummary    SummaryMode = "summary"
	ModeQuickRef   SummaryMode = "quick_ref"
	ModeIntegrated SummaryMode = "integrated"
	ModeIdentity   SummaryMode = "identity"
)

// Summarizer is the abstract LLM-backed compression capability
// consolidation calls to produce lower-fidelity handoff content and
// identity-thread syntheses. Output length is expected to honor
// targetTokens to within roughly ±20%, but determinism is not required
// (§6). LLM inference itself is out of scope for this service; callers
// wire in whatever provider client implements this interface.
type Summarizer interface {
	Summarize(ctx context.Context, text string, targetTokens int, mode SummaryMode) (string, error)
}
