package ingestion

import "github.com/codeready-toolchain/agentmem/pkg/models"

// Field length caps, uniform across call sites (§4.2 input constraints).
const (
	maxSessionIDLen = 256
	maxTextLen      = 1 << 20 // 1 MiB of raw text before excerpt capping; generous since tool_result offloads to an artifact
	maxTagLen       = 64
	maxTagCount     = 32
)

// RecordEventRequest is the caller-supplied shape for record_event.
// TenantID is deliberately absent: it always comes from the Principal,
// never the request body (§4.2 input constraints).
type RecordEventRequest struct {
	SessionID   string
	ProjectID   string
	SubjectType string
	SubjectID   string

	Channel     models.Channel
	Sensitivity models.Sensitivity
	Tags        []string

	Actor models.Actor
	Kind  models.EventKind

	Content models.EventContent
	Refs    []string
}

// RecordEventResult is record_event's result (§6).
type RecordEventResult struct {
	EventID  string
	ChunkIDs []string
}
