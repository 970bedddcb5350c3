package models

import "time"

// EditTargetType names the kind of ground-truth item a Memory Edit
// applies to.
type EditTargetType string

const (
	TargetChunk    EditTargetType = "chunk"
	TargetDecision EditTargetType = "decision"
)

func (t EditTargetType) Valid() bool {
	switch t {
	case TargetChunk, TargetDecision:
		return true
	}
	return false
}

// EditOp is the governance operation a Memory Edit applies at read time.
// Modeled as a closed enum (tagged variant per §9) rather than an open
// string so the overlay's read-behavior switch (§4.3 table) stays
// exhaustive.
type EditOp string

const (
	OpRetract   EditOp = "retract"
	OpAmend     EditOp = "amend"
	OpQuarantine EditOp = "quarantine"
	OpAttenuate EditOp = "attenuate"
	OpBlock     EditOp = "block"
)

func (o EditOp) Valid() bool {
	switch o {
	case OpRetract, OpAmend, OpQuarantine, OpAttenuate, OpBlock:
		return true
	}
	return false
}

// RequiresApproval reports whether op needs an approver role before it
// takes effect (§4.3: retract and block require approval; the others may
// be configured to apply immediately).
func (o EditOp) RequiresApproval() bool {
	return o == OpRetract || o == OpBlock
}

// EditPatch carries the op-specific payload. Only the fields relevant to
// the op are populated; the overlay ignores the rest.
type EditPatch struct {
	Text             string  `json:"text,omitempty"`
	Importance       *float64 `json:"importance,omitempty"`
	ImportanceDelta  float64  `json:"importance_delta,omitempty"`
	Channel          Channel  `json:"channel,omitempty"`
}

// EditStatus tracks a Memory Edit's approval lifecycle.
type EditStatus string

const (
	EditPending  EditStatus = "pending"
	EditApproved EditStatus = "approved"
	EditRejected EditStatus = "rejected"
)

// MemoryEdit is a governance overlay entry. Approved edits are applied
// as a pure function over (ground-truth item, edit list) at read time;
// they never mutate the underlying Event/Decision.
type MemoryEdit struct {
	EditID   string         `json:"edit_id"`
	TenantID string         `json:"tenant_id"`

	TargetType EditTargetType `json:"target_type"`
	TargetID   string         `json:"target_id"`
	Op         EditOp         `json:"op"`
	Reason     string         `json:"reason"`
	Patch      EditPatch      `json:"patch,omitempty"`

	Status EditStatus `json:"status"`

	ProposedBy string `json:"proposed_by"`
	ApprovedBy string `json:"approved_by,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
}
