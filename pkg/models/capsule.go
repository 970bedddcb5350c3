package models

import "time"

// CapsuleStatus tracks a capsule's lifecycle.
type CapsuleStatus string

const (
	CapsuleActive  CapsuleStatus = "active"
	CapsuleExpired CapsuleStatus = "expired"
	CapsuleRevoked CapsuleStatus = "revoked"
)

// CapsuleItems enumerates the ground-truth references a capsule curates.
type CapsuleItems struct {
	ChunkIDs    []string `json:"chunk_ids,omitempty"`
	DecisionIDs []string `json:"decision_ids,omitempty"`
	ArtifactIDs []string `json:"artifact_ids,omitempty"`
}

// Capsule is a time-bounded, audience-restricted curated memory package.
type Capsule struct {
	CapsuleID string `json:"capsule_id"`
	TenantID  string `json:"tenant_id"`

	AuthorAgentID    string   `json:"author_agent_id"`
	SubjectType      string   `json:"subject_type,omitempty"`
	SubjectID        string   `json:"subject_id,omitempty"`
	Scope            string   `json:"scope,omitempty"`
	AudienceAgentIDs []string `json:"audience_agent_ids"`

	Items CapsuleItems `json:"items"`
	Risks []string     `json:"risks,omitempty"`

	TTLDays   int       `json:"ttl_days"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`

	Status CapsuleStatus `json:"status"`
}

// AudienceIncludes reports whether agentID is a named audience member.
func (c *Capsule) AudienceIncludes(agentID string) bool {
	for _, id := range c.AudienceAgentIDs {
		if id == agentID {
			return true
		}
	}
	return false
}

// MatchesSubject reports whether the capsule's subject matches the given
// subject (empty subject on either side matches everything — per the
// open question in §9, capsules are not restricted to a single subject
// scope unless one is specified on both sides).
func (c *Capsule) MatchesSubject(subjectType, subjectID string) bool {
	if subjectType == "" || c.SubjectType == "" {
		return true
	}
	if c.SubjectType != subjectType {
		return false
	}
	if subjectID == "" || c.SubjectID == "" {
		return true
	}
	return c.SubjectID == subjectID
}
