// Package ids generates and validates the opaque, type-prefixed
// identifiers used throughout the service (evt_, chk_, dec_, art_,
// cap_, kn_, edit_, acb_, handoff_, refl_, job_).
//
// IDs are ULIDs under a human-readable prefix: lexical order tracks
// creation order to the millisecond (IDs made in the same millisecond
// order randomly), which lets the store's recency indexes and the
// orchestrator's tie-break rule ("higher ts wins, then lexicographically
// larger chunk_id") use the ID itself as a secondary sort key.
package ids

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Prefixes for every entity kind named in §6 of the specification.
const (
	PrefixEvent        = "evt_"
	PrefixChunk        = "chk_"
	PrefixDecision     = "dec_"
	PrefixArtifact     = "art_"
	PrefixCapsule      = "cap_"
	PrefixKnowledge    = "kn_"
	PrefixEdit         = "edit_"
	PrefixACB          = "acb_"
	PrefixHandoff      = "handoff_"
	PrefixReflection   = "refl_"
	PrefixJob          = "job_"
	PrefixAudit        = "aud_"
)

var allPrefixes = []string{
	PrefixEvent, PrefixChunk, PrefixDecision, PrefixArtifact, PrefixCapsule,
	PrefixKnowledge, PrefixEdit, PrefixACB, PrefixHandoff, PrefixReflection,
	PrefixJob, PrefixAudit,
}

// New generates a new opaque ID with the given prefix, timestamped at
// now so IDs sort lexically by creation time within the prefix.
func New(prefix string) string {
	return prefix + ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// NewAt generates a new opaque ID timestamped at ts, used by tests and
// by ingestion when an explicit event ts is supplied.
func NewAt(prefix string, ts time.Time) string {
	return prefix + ulid.MustNew(ulid.Timestamp(ts), rand.Reader).String()
}

// Valid reports whether id carries the expected prefix and a
// syntactically valid ULID suffix.
func Valid(id, prefix string) bool {
	suffix, ok := strings.CutPrefix(id, prefix)
	if !ok {
		return false
	}
	_, err := ulid.ParseStrict(suffix)
	return err == nil
}

// ValidateKnownPrefix reports an error unless id has one of the
// recognized entity prefixes and a well-formed suffix. Used at every
// external boundary that accepts a caller-supplied ID reference.
func ValidateKnownPrefix(id string) error {
	for _, p := range allPrefixes {
		if strings.HasPrefix(id, p) {
			if Valid(id, p) {
				return nil
			}
			return fmt.Errorf("malformed id %q for prefix %q", id, p)
		}
	}
	return fmt.Errorf("unrecognized id prefix in %q", id)
}
