package policy

import (
	"fmt"
	"sort"
	"time"
)

// DurationPolicy decides the new deadline when a subject is (re)blocked.
type DurationPolicy interface {
	// ID returns unique identifier (e.g., "overwrite", "extend").
	ID() string

	// Name returns human-readable name for display.
	Name() string

	// Deadline computes the unblock instant. prev is the zero time when
	// the subject has no entry.
	Deadline(prev, now time.Time, d time.Duration) time.Time
}

// OverwritePolicy replaces any prior deadline with now+d. A shorter
// re-block can therefore shorten an active block.
type OverwritePolicy struct{}

func (OverwritePolicy) ID() string   { return "overwrite" }
func (OverwritePolicy) Name() string { return "Overwrite previous deadline" }

func (OverwritePolicy) Deadline(_, now time.Time, d time.Duration) time.Time {
	return now.Add(d)
}

// ExtendPolicy stacks d on top of a still-active deadline.
type ExtendPolicy struct{}

func (ExtendPolicy) ID() string   { return "extend" }
func (ExtendPolicy) Name() string { return "Extend active deadline" }

func (ExtendPolicy) Deadline(prev, now time.Time, d time.Duration) time.Time {
	base := now
	if prev.After(now) {
		base = prev
	}
	return base.Add(d)
}

// DefaultDurationPolicyID is the policy used when none is configured.
const DefaultDurationPolicyID = "overwrite"

// Registry holds all duration policies.
type Registry struct {
	policies map[string]DurationPolicy
}

// NewRegistry creates a registry with all built-in policies.
func NewRegistry() *Registry {
	r := &Registry{
		policies: make(map[string]DurationPolicy),
	}
	r.Register(OverwritePolicy{})
	r.Register(ExtendPolicy{})
	return r
}

// NewRegistryWithPolicies creates a registry with custom policies (for testing).
func NewRegistryWithPolicies(policies ...DurationPolicy) *Registry {
	r := &Registry{
		policies: make(map[string]DurationPolicy),
	}
	for _, p := range policies {
		r.Register(p)
	}
	return r
}

// Register adds a policy to the registry.
func (r *Registry) Register(p DurationPolicy) {
	r.policies[p.ID()] = p
}

// Get returns a policy by ID.
func (r *Registry) Get(id string) (DurationPolicy, bool) {
	p, ok := r.policies[id]
	return p, ok
}

// Lookup is Get with an error for unknown IDs. An empty id selects the default.
func (r *Registry) Lookup(id string) (DurationPolicy, error) {
	if id == "" {
		id = DefaultDurationPolicyID
	}
	p, ok := r.Get(id)
	if !ok {
		return nil, fmt.Errorf("duration policy not found: %s", id)
	}
	return p, nil
}

// List returns all policy IDs, sorted.
func (r *Registry) List() []string {
	ids := make([]string, 0, len(r.policies))
	for id := range r.policies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Ensure built-ins implement DurationPolicy.
var (
	_ DurationPolicy = OverwritePolicy{}
	_ DurationPolicy = ExtendPolicy{}
)
