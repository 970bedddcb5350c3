package consolidation

import (
	"context"
	"strings"
	"unicode/utf8"
)

// avgCharsPerToken approximates English text for the heuristic
// summarizer's truncation budget. A real deployment swaps this
// Summarizer for an LLM-backed one; LLM inference itself is out of
// scope here (§6 — Summarize is the abstraction boundary).
const avgCharsPerToken = 4

// HeuristicSummarizer is the default Summarizer: it does not call an
// LLM, it truncates to roughly targetTokens worth of characters on a
// word boundary. Good enough to exercise the consolidation pipeline
// end to end without an inference dependency.
type HeuristicSummarizer struct{}

func (HeuristicSummarizer) Summarize(_ context.Context, text string, targetTokens int, mode SummaryMode) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}

	budget := targetTokens * avgCharsPerToken
	if budget <= 0 || utf8.RuneCountInString(text) <= budget {
		return text, nil
	}

	runes := []rune(text)
	cut := runes[:budget]
	if i := strings.LastIndexAny(string(cut), " \t\n"); i > 0 {
		cut = []rune(string(cut)[:i])
	}
	return strings.TrimSpace(string(cut)) + "...", nil
}
