package retrieval

import (
	"math"
	"strings"
	"time"
)

// tokenizeQuery splits free text into the OR-joined term list
// store.SearchChunks expects. A plain whitespace split is sufficient:
// the database's to_tsquery does the linguistic normalization.
func tokenizeQuery(text string) []string {
	fields := strings.Fields(text)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `.,;:!?"'()[]{}`)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// recencyDecay computes exp(-Δt / τ) with Δt in seconds from ts to now
// (§4.4 scoring function).
func recencyDecay(ts, now time.Time, tauDays float64) float64 {
	deltaSeconds := now.Sub(ts).Seconds()
	if deltaSeconds < 0 {
		deltaSeconds = 0
	}
	tauSeconds := tauDays * 24 * 60 * 60
	return math.Exp(-deltaSeconds / tauSeconds)
}

// score applies the §4.4 scoring function. normRank is the chunk's
// full-text rank already normalized 0..1 within the candidate pool.
func score(alpha, beta, gamma, normRank, decay, importance float64) float64 {
	return alpha*normRank + beta*decay + gamma*importance
}
