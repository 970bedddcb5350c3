package orchestrator

import "github.com/codeready-toolchain/agentmem/pkg/models"

// Request is build_acb's input contract (§4.5).
type Request struct {
	SessionID          string
	AgentID            string
	Channel            models.Channel
	Intent             string
	QueryText          string
	Scope              string
	SubjectType        string
	SubjectID          string
	ProjectID          string
	IncludeCapsules    bool
	IncludeQuarantined bool
	MaxTokens          int
}
