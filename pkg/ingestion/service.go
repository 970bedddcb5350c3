// Package ingestion implements record_event (§4.2, C2): validation,
// secret scanning, tool-result normalization, chunk extraction, atomic
// store insert, and audit emission.
package ingestion

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/agentmem/pkg/apperr"
	"github.com/codeready-toolchain/agentmem/pkg/ids"
	"github.com/codeready-toolchain/agentmem/pkg/masking"
	"github.com/codeready-toolchain/agentmem/pkg/models"
)

// eventStore is the subset of *store.Store ingestion depends on, kept
// narrow so tests can substitute a fake without a database.
type eventStore interface {
	InsertEventWithChunks(ctx context.Context, evt models.Event, chunks []models.Chunk, artifact *models.Artifact) error
	AppendAudit(ctx context.Context, e models.AuditEvent) error
}

// Service runs the ingestion pipeline for one tenant's worth of
// traffic. Stateless aside from its dependencies; safe for concurrent use.
type Service struct {
	store   eventStore
	masking *masking.Service
	maxExcerptBytes int
	log     *slog.Logger
}

// New builds an ingestion Service. maxExcerptBytes is the tool-result
// excerpt cap before artifact offload (§4.2 step 3, typically
// config.ToolResultConfig.ExcerptBytesMax).
func New(store eventStore, maskingSvc *masking.Service, maxExcerptBytes int, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, masking: maskingSvc, maxExcerptBytes: maxExcerptBytes, log: log}
}

// RecordEvent runs the full ingestion pipeline and returns the new
// event's ID plus its derived chunk IDs (§4.2).
func (s *Service) RecordEvent(ctx context.Context, principal models.Principal, req RecordEventRequest) (*RecordEventResult, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	redactions, err := s.scanAndRedact(&req)
	if err != nil {
		return nil, err
	}

	var artifact *models.Artifact
	evt := models.Event{
		EventID:     ids.New(ids.PrefixEvent),
		TenantID:    principal.TenantID,
		SessionID:   req.SessionID,
		ProjectID:   req.ProjectID,
		SubjectType: req.SubjectType,
		SubjectID:   req.SubjectID,
		Channel:     req.Channel,
		Sensitivity: req.Sensitivity,
		Tags:        req.Tags,
		Actor:       req.Actor,
		Kind:        req.Kind,
		TS:          time.Now().UTC(),
		Content:     req.Content,
		Refs:        req.Refs,
	}
	if evt.Sensitivity == "" {
		evt.Sensitivity = models.SensitivityNone
	}

	if evt.Kind == models.KindToolResult {
		artifact = s.offloadToolResult(&evt)
	}

	chunks := extractChunks(evt)
	chunkIDs := make([]string, 0, len(chunks))
	for _, c := range chunks {
		chunkIDs = append(chunkIDs, c.ChunkID)
	}

	if err := s.store.InsertEventWithChunks(ctx, evt, chunks, artifact); err != nil {
		return nil, err
	}

	if err := s.store.AppendAudit(ctx, models.AuditEvent{
		TS:           evt.TS,
		TenantID:     evt.TenantID,
		UserID:       principal.UserID,
		EventType:    models.EventTypeDataWrite,
		ResourceType: "event",
		ResourceID:   evt.EventID,
		Action:       "record_event",
		Outcome:      "success",
		Details: map[string]any{
			"redactions": redactions,
			"kind":       string(evt.Kind),
		},
	}); err != nil {
		s.log.Error("failed to append audit record for record_event", "event_id", evt.EventID, "error", err)
	}

	return &RecordEventResult{EventID: evt.EventID, ChunkIDs: chunkIDs}, nil
}

// scanAndRedact applies the secret scan to the Text, ExcerptText and
// Decision fields of req.Content, honoring the configured policy (§4.2
// step 2). Other content fields (Rationale, Constraints, Alternatives,
// Consequences, Note, Args) are neither scanned nor redacted. Secrets
// with sensitivity = secret are rejected outright regardless of
// policy, since such content is never persisted as text.
func (s *Service) scanAndRedact(req *RecordEventRequest) (int, error) {
	if s.masking == nil {
		return 0, nil
	}
	total := 0
	for _, field := range []*string{&req.Content.Text, &req.Content.ExcerptText, &req.Content.Decision} {
		if *field == "" {
			continue
		}
		total += s.masking.Scan(*field)
	}
	if total == 0 {
		return 0, nil
	}
	if req.Sensitivity == models.SensitivitySecret {
		return total, apperr.Wrap(&apperr.SensitiveContentError{Matches: total}, "secret content rejected")
	}

	redacted, err := s.masking.ScanAndRedact(req.Content.Text)
	if err != nil {
		return total, err
	}
	req.Content.Text = redacted

	redacted, err = s.masking.ScanAndRedact(req.Content.ExcerptText)
	if err != nil {
		return total, err
	}
	req.Content.ExcerptText = redacted

	redacted, err = s.masking.ScanAndRedact(req.Content.Decision)
	if err != nil {
		return total, err
	}
	req.Content.Decision = redacted

	return total, nil
}

// offloadToolResult caps evt's excerpt to maxExcerptBytes, moving the
// full text to an Artifact when it overflows (§4.2 step 3).
func (s *Service) offloadToolResult(evt *models.Event) *models.Artifact {
	full := evt.Content.ExcerptText
	if len(full) <= s.maxExcerptBytes {
		return nil
	}
	artifactID := ids.New(ids.PrefixArtifact)
	artifact := &models.Artifact{
		ArtifactID:  artifactID,
		TenantID:    evt.TenantID,
		EventID:     evt.EventID,
		ContentType: "text/plain",
		SizeBytes:   len(full),
		Data:        []byte(full),
	}
	evt.Content.ExcerptText = truncateUTF8(full, s.maxExcerptBytes)
	evt.Content.Truncated = true
	evt.Content.ArtifactID = artifactID
	return artifact
}
