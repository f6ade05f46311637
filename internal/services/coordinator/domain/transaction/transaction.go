package transaction

import (
	"strings"
	"time"
)

// Party is one principal named on a transaction.
type Party struct {
	Principal string    `json:"principal"`
	Role      string    `json:"role"`
	HasSigned bool      `json:"has_signed"`
	SignedAt  time.Time `json:"signed_at,omitzero"`
}

// State is the replayed transaction aggregate used by Decide.
type State struct {
	// Created is set once the transaction.created event has been folded.
	Created             bool
	ID                  string
	Kind                Kind
	Status              Status
	Jurisdiction        string
	AssetIDs            []string
	Parties             []Party
	MetadataFingerprint string
	CreatedBy           string
	// ComplianceRefs accumulates verification ids from every compliance check.
	ComplianceRefs []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	// ExpiresAt is nil when the transaction never expires.
	ExpiresAt *time.Time
	// Version increments once per persisted write.
	Version int64
}

// EffectiveStatus returns the status observed at now, applying lazy expiry.
func (s State) EffectiveStatus(now time.Time) Status {
	if s.Expired(now) {
		return StatusExpired
	}
	return s.Status
}

// Expired reports whether the stored status is expirable and now is past
// ExpiresAt.
func (s State) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && s.Status.Expirable() && now.After(*s.ExpiresAt)
}

// Party returns the party entry for principal.
func (s State) Party(principal string) (Party, bool) {
	principal = strings.TrimSpace(principal)
	for _, party := range s.Parties {
		if party.Principal == principal {
			return party, true
		}
	}
	return Party{}, false
}

// IsParty reports whether principal is named on the transaction.
func (s State) IsParty(principal string) bool {
	_, ok := s.Party(principal)
	return ok
}

// AllSigned reports whether every party has signed.
func (s State) AllSigned() bool {
	if len(s.Parties) == 0 {
		return false
	}
	for _, party := range s.Parties {
		if !party.HasSigned {
			return false
		}
	}
	return true
}

// SignedCount returns how many parties have signed.
func (s State) SignedCount() int {
	count := 0
	for _, party := range s.Parties {
		if party.HasSigned {
			count++
		}
	}
	return count
}

// PartyWithRole returns the first party whose role matches, ignoring case.
func (s State) PartyWithRole(role string) (Party, bool) {
	for _, party := range s.Parties {
		if strings.EqualFold(strings.TrimSpace(party.Role), role) {
			return party, true
		}
	}
	return Party{}, false
}

// Clone returns a deep copy safe to mutate.
func (s State) Clone() State {
	out := s
	out.AssetIDs = append([]string(nil), s.AssetIDs...)
	out.Parties = append([]Party(nil), s.Parties...)
	out.ComplianceRefs = append([]string(nil), s.ComplianceRefs...)
	if s.ExpiresAt != nil {
		expires := *s.ExpiresAt
		out.ExpiresAt = &expires
	}
	return out
}
