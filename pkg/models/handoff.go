package models

import "time"

// CompressionLevel tracks a handoff's age-driven compression stage
// (§3 Lifecycles, §4.7).
type CompressionLevel string

const (
	CompressionFull       CompressionLevel = "full"
	CompressionSummary    CompressionLevel = "summary"
	CompressionQuickRef   CompressionLevel = "quick_ref"
	CompressionIntegrated CompressionLevel = "integrated"
)

// Handoff is an end-of-session, meaning-preserving summary.
type Handoff struct {
	HandoffID string `json:"handoff_id"`
	TenantID  string `json:"tenant_id"`
	SessionID string `json:"session_id"`

	Experienced string `json:"experienced"`
	Noticed     string `json:"noticed"`
	Learned     string `json:"learned"`
	Remember    string `json:"remember"`

	Story    string `json:"story,omitempty"`
	Becoming string `json:"becoming,omitempty"`

	Significance float64  `json:"significance"`
	Tags         []string `json:"tags,omitempty"`
	WithWhom     string   `json:"with_whom,omitempty"`

	CompressionLevel CompressionLevel `json:"compression_level"`

	// IntegratedInto holds the Knowledge Note ID this handoff's Becoming
	// statement was merged into by identity synthesis, if any.
	IntegratedInto string `json:"integrated_into,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// KnowledgeNote is a durable insight synthesized across many handoffs'
// Becoming statements (§4.7 identity synthesis).
type KnowledgeNote struct {
	NoteID         string   `json:"note_id"`
	TenantID       string   `json:"tenant_id"`
	Title          string   `json:"title"`
	Content        string   `json:"content"`
	SourceHandoffs []string `json:"source_handoffs"`
	Confidence     float64  `json:"confidence"`
	Tags           []string `json:"tags,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
