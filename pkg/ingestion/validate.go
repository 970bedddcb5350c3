package ingestion

import (
	"unicode/utf8"

	"github.com/codeready-toolchain/agentmem/pkg/apperr"
	"github.com/codeready-toolchain/agentmem/pkg/models"
)

// validate checks shape and enumerations (§4.2 step 1): session_id,
// channel, actor, kind, content are required, and every enum field
// must be one of its known values.
func validate(req RecordEventRequest) error {
	if req.SessionID == "" {
		return apperr.NewValidation("session_id", "required")
	}
	if len(req.SessionID) > maxSessionIDLen {
		return apperr.NewValidation("session_id", "exceeds maximum length")
	}
	if !req.Channel.Valid() {
		return apperr.NewValidation("channel", "unrecognized value")
	}
	if req.Sensitivity == "" {
		req.Sensitivity = models.SensitivityNone
	}
	if !req.Sensitivity.Valid() {
		return apperr.NewValidation("sensitivity", "unrecognized value")
	}
	if !req.Actor.Type.Valid() {
		return apperr.NewValidation("actor.type", "unrecognized value")
	}
	if req.Actor.ID == "" {
		return apperr.NewValidation("actor.id", "required")
	}
	if !req.Kind.Valid() {
		return apperr.NewValidation("kind", "unrecognized value")
	}
	if len(req.Tags) > maxTagCount {
		return apperr.NewValidation("tags", "too many tags")
	}
	for _, tag := range req.Tags {
		if len(tag) > maxTagLen {
			return apperr.NewValidation("tags", "tag exceeds maximum length")
		}
	}
	if err := validateContent(req.Kind, req.Content); err != nil {
		return err
	}
	return nil
}

// validateContent enforces that the content variant matching Kind is
// populated and within length caps. Exactly one kind-specific payload
// is expected per event (models.EventContent doc comment).
func validateContent(kind models.EventKind, c models.EventContent) error {
	switch kind {
	case models.KindMessage:
		if c.Text == "" {
			return apperr.NewValidation("content.text", "required for kind=message")
		}
		if !utf8.ValidString(c.Text) {
			return apperr.NewValidation("content.text", "not valid UTF-8")
		}
	case models.KindToolCall:
		if c.Tool == "" {
			return apperr.NewValidation("content.tool", "required for kind=tool_call")
		}
	case models.KindToolResult:
		if c.ExcerptText == "" {
			return apperr.NewValidation("content.excerpt_text", "required for kind=tool_result")
		}
		if !utf8.ValidString(c.ExcerptText) {
			return apperr.NewValidation("content.excerpt_text", "not valid UTF-8")
		}
	case models.KindDecision:
		if c.Decision == "" {
			return apperr.NewValidation("content.decision", "required for kind=decision")
		}
	case models.KindTaskUpdate:
		if c.TaskID == "" {
			return apperr.NewValidation("content.task_id", "required for kind=task_update")
		}
	case models.KindArtifact:
		if c.ArtifactID == "" {
			return apperr.NewValidation("content.artifact_id", "required for kind=artifact")
		}
	}
	if len(c.Text) > maxTextLen || len(c.ExcerptText) > maxTextLen {
		return apperr.NewValidation("content", "exceeds maximum length")
	}
	return nil
}
