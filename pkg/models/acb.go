package models

// Mode is the ACB Orchestrator's mode-detection result (§4.5).
type Mode string

const (
	ModeTask        Mode = "TASK"
	ModeExploration Mode = "EXPLORATION"
	ModeDebugging   Mode = "DEBUGGING"
	ModeLearning    Mode = "LEARNING"
	ModeGeneral     Mode = "GENERAL"
)

// SectionName enumerates the fixed ACB sections, in their required
// assembly order (§4.5: identity -> rules -> task_state ->
// relevant_decisions -> recent_window -> capsules -> retrieved_evidence).
type SectionName string

const (
	SectionIdentity           SectionName = "identity"
	SectionRules              SectionName = "rules"
	SectionTaskState          SectionName = "task_state"
	SectionRelevantDecisions  SectionName = "relevant_decisions"
	SectionRecentWindow       SectionName = "recent_window"
	SectionCapsules           SectionName = "capsules"
	SectionRetrievedEvidence  SectionName = "retrieved_evidence"
)

// AssemblyOrder is the fixed section assembly order from §4.5.
var AssemblyOrder = []SectionName{
	SectionIdentity,
	SectionRules,
	SectionTaskState,
	SectionRelevantDecisions,
	SectionRecentWindow,
	SectionCapsules,
	SectionRetrievedEvidence,
}

// ItemType distinguishes a text evidence item from a decision reference
// within a section.
type ItemType string

const (
	ItemText     ItemType = "text"
	ItemDecision ItemType = "decision"
)

// Item is one unit of content placed into a section.
type Item struct {
	Type       ItemType `json:"type"`
	Text       string   `json:"text,omitempty"`
	DecisionID string   `json:"decision_id,omitempty"`
	Refs       []string `json:"refs"`

	// TokenEst is this single item's token cost, summed into the
	// section's TokenEst.
	TokenEst int `json:"-"`
}

// Section is one budgeted, ordered slice of the bundle.
type Section struct {
	Name     SectionName `json:"name"`
	Items    []Item      `json:"items"`
	TokenEst int         `json:"token_est"`
}

// OmissionReason enumerates why an item didn't make it into the bundle.
type OmissionReason string

const (
	ReasonBudgetExceeded        OmissionReason = "budget_exceeded"
	ReasonOversize              OmissionReason = "oversize"
	ReasonBudgetExhaustedSticky OmissionReason = "budget_exhausted_sticky"
	ReasonSectionError          OmissionReason = "section_error"
)

// Omission records one dropped item or degraded section.
type Omission struct {
	Reason     OmissionReason `json:"reason"`
	Candidates []string       `json:"candidates,omitempty"`
	ArtifactID string         `json:"artifact_id,omitempty"`
	Section    SectionName    `json:"section,omitempty"`
	Detail     string         `json:"detail,omitempty"`
}

// ScoringWeights are the retrieval engine's fixed weights (§4.4).
type ScoringWeights struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Gamma float64 `json:"gamma"`
}

// Provenance is the per-bundle record of intent, query, filters and
// scoring weights (§4.5).
type Provenance struct {
	Intent             string         `json:"intent"`
	Mode               Mode           `json:"mode"`
	QueryTerms         []string       `json:"query_terms"`
	CandidatePoolSize  int            `json:"candidate_pool_size"`
	SensitivityAllowed []Sensitivity  `json:"sensitivity_allowed"`
	Scope              string         `json:"scope,omitempty"`
	Scoring            ScoringWeights `json:"scoring"`
}

// ACB is the Active Context Bundle returned by build_acb.
type ACB struct {
	ACBID         string      `json:"acb_id"`
	BudgetTokens  int         `json:"budget_tokens"`
	TokenUsedEst  int         `json:"token_used_est"`
	Sections      []Section   `json:"sections"`
	Omissions     []Omission  `json:"omissions"`
	Provenance    Provenance  `json:"provenance"`
	Mode          Mode        `json:"mode"`
}

// Section returns the section with the given name, or nil.
func (a *ACB) Section(name SectionName) *Section {
	for i := range a.Sections {
		if a.Sections[i].Name == name {
			return &a.Sections[i]
		}
	}
	return nil
}
