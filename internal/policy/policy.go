// Package policy implements the rules that decide who may be blocked and for how long.
// Exemptions name the identities that are never blockable; duration policies
// are Strategy-pattern implementations selected by ID.
package policy

import (
	"strings"
	"time"
)

// DefaultBlockDuration is 10 minutes, matching the mobile client's lockout.
const DefaultBlockDuration = 10 * time.Minute

// SentinelSubject is blocked when no subject can be identified at all.
const SentinelSubject = "unknown"

const (
	DefaultSelfID    = "contentmon"
	DefaultNeutralID = "desktop"
)

// Exemptions identifies the monitor itself and the neutral surface.
// Both are permanently exempt from blocking and are never a valid
// enforcement target.
type Exemptions struct {
	selfID          string
	neutralID       string
	neutralPrefixes []string
}

// NewExemptions creates exemptions. Any subject starting with one of
// neutralPrefixes also counts as the neutral surface (e.g. several launchers).
func NewExemptions(selfID, neutralID string, neutralPrefixes ...string) *Exemptions {
	prefixes := make([]string, 0, len(neutralPrefixes))
	for _, p := range neutralPrefixes {
		if p = strings.TrimSpace(p); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	return &Exemptions{
		selfID:          selfID,
		neutralID:       neutralID,
		neutralPrefixes: prefixes,
	}
}

// DefaultExemptions returns exemptions with the default identities.
func DefaultExemptions() *Exemptions {
	return NewExemptions(DefaultSelfID, DefaultNeutralID)
}

func (e *Exemptions) SelfID() string {
	return e.selfID
}

func (e *Exemptions) NeutralID() string {
	return e.neutralID
}

// IsSelf reports whether id is the monitor's own identity.
func (e *Exemptions) IsSelf(id string) bool {
	return id != "" && id == e.selfID
}

// IsNeutral reports whether id is the neutral surface.
func (e *Exemptions) IsNeutral(id string) bool {
	if id == "" {
		return false
	}
	if id == e.neutralID {
		return true
	}
	for _, p := range e.neutralPrefixes {
		if strings.HasPrefix(id, p) {
			return true
		}
	}
	return false
}

// IsExempt reports whether id can never be blocked or enforced against.
// The empty id is treated as exempt.
func (e *Exemptions) IsExempt(id string) bool {
	return id == "" || e.IsSelf(id) || e.IsNeutral(id)
}
