package retrieval

import "github.com/codeready-toolchain/agentmem/pkg/models"

// Request is search_chunks's input contract (§4.4).
type Request struct {
	QueryText          string
	Channel            models.Channel
	Scope              string
	SubjectType        string
	SubjectID          string
	Kinds              []models.EventKind
	IncludeQuarantined bool
	TokenBudget        int
}

// Result is one packed chunk plus the score that ranked it, used by
// the orchestrator's provenance output (§4.5).
type Result struct {
	Chunk models.Chunk
	Score float64
}
