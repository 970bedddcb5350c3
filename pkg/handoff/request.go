package handoff

import (
	"time"

	"github.com/codeready-toolchain/agentmem/pkg/models"
)

// topKBecoming bounds how many identity-thread "becoming" statements
// wake_up folds into its narrative (§4.6) — generous enough to carry
// real identity continuity without turning the greeting into a dump of
// the whole thread.
const topKBecoming = 5

// CreateHandoffRequest is create_handoff's input (§4.6). Always written
// at CompressionFull; consolidation ages it down later.
type CreateHandoffRequest struct {
	SessionID    string
	Experienced  string
	Noticed      string
	Learned      string
	Remember     string
	Story        string
	Becoming     string
	Significance float64
	Tags         []string
	WithWhom     string
}

// IdentityThreadEntry is one row of get_identity_thread's result.
type IdentityThreadEntry struct {
	HandoffID    string
	Becoming     string
	CreatedAt    time.Time
	Significance float64
}

// WakeUpResult is wake_up's composed response (§4.6).
type WakeUpResult struct {
	GreetingContext      string
	LastHandoff          *models.Handoff
	IdentityThread       []IdentityThreadEntry
	RecentDecisionsCount int
	KnowledgeNotesCount  int
}
