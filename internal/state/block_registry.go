package state

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/content_mon/internal/domain"
	"github.com/eliteGoblin/focusd/content_mon/internal/policy"
)

// BlockRegistry implements domain.BlockRegistry.
// Entries expire lazily: a deadline in the past simply stops matching.
// Prune bounds memory by dropping entries that expired long ago.
type BlockRegistry struct {
	mu      sync.RWMutex
	entries map[string]time.Time

	exemptions     *policy.Exemptions
	durationPolicy policy.DurationPolicy
	now            func() time.Time
	logger         *zap.Logger

	// Late-bound: set after the resolver exists.
	foreground  domain.ForegroundResolver
	neutralizer domain.Neutralizer
}

// NewBlockRegistry creates an empty registry.
func NewBlockRegistry(
	exemptions *policy.Exemptions,
	durationPolicy policy.DurationPolicy,
	logger *zap.Logger,
) *BlockRegistry {
	if durationPolicy == nil {
		durationPolicy = policy.OverwritePolicy{}
	}
	return &BlockRegistry{
		entries:        make(map[string]time.Time),
		exemptions:     exemptions,
		durationPolicy: durationPolicy,
		now:            time.Now,
		logger:         logger,
	}
}

// WithClock replaces the time source (for testing).
func (r *BlockRegistry) WithClock(now func() time.Time) *BlockRegistry {
	r.now = now
	return r
}

// BindEnforcement wires the resolver and neutral-state action used when a
// freshly blocked subject is already in the foreground.
func (r *BlockRegistry) BindEnforcement(foreground domain.ForegroundResolver, neutralizer domain.Neutralizer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.foreground = foreground
	r.neutralizer = neutralizer
}

// Block sets subjectID's deadline using the duration policy. Exempt subjects
// are a silent no-op. If the subject currently resolves as the foreground,
// the neutral-state transition is triggered right away instead of waiting
// for the next enforcement tick.
func (r *BlockRegistry) Block(ctx context.Context, subjectID string, d time.Duration) (time.Time, bool) {
	if subjectID == "" || (r.exemptions != nil && r.exemptions.IsExempt(subjectID)) {
		r.logger.Debug("ignoring block of exempt subject", zap.String("subject", subjectID))
		return time.Time{}, false
	}

	now := r.now()

	r.mu.Lock()
	deadline := r.durationPolicy.Deadline(r.entries[subjectID], now, d)
	r.entries[subjectID] = deadline
	foreground, neutralizer := r.foreground, r.neutralizer
	r.mu.Unlock()

	r.logger.Info("blocked subject",
		zap.String("subject", subjectID),
		zap.Duration("duration", d),
		zap.Time("unblock_at", deadline),
		zap.String("policy", r.durationPolicy.ID()))

	if foreground != nil && neutralizer != nil {
		if fg := foreground.Resolve(now); fg.SubjectID == subjectID {
			r.logger.Info("blocked subject is in foreground, forcing neutral state",
				zap.String("subject", subjectID))
			neutralizer.ForceNeutralState(ctx)
		}
	}

	return deadline, true
}

// IsBlocked reports whether subjectID has an entry and now is before its deadline.
func (r *BlockRegistry) IsBlocked(subjectID string, now time.Time) bool {
	if r.exemptions != nil && r.exemptions.IsExempt(subjectID) {
		return false
	}
	r.mu.RLock()
	deadline, ok := r.entries[subjectID]
	r.mu.RUnlock()
	return ok && now.Before(deadline)
}

// UnblockDeadline returns the stored deadline, or the zero time.
func (r *BlockRegistry) UnblockDeadline(subjectID string) time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[subjectID]
}

// Prune removes entries whose deadline passed more than grace before now.
func (r *BlockRegistry) Prune(now time.Time, grace time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, deadline := range r.entries {
		if now.Sub(deadline) > grace {
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}

// Snapshot returns all entries sorted by subject.
func (r *BlockRegistry) Snapshot() []domain.BlockEntry {
	r.mu.RLock()
	result := make([]domain.BlockEntry, 0, len(r.entries))
	for id, deadline := range r.entries {
		result = append(result, domain.BlockEntry{SubjectID: id, UnblockAt: deadline})
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].SubjectID < result[j].SubjectID })
	return result
}

// Ensure BlockRegistry implements domain.BlockRegistry.
var _ domain.BlockRegistry = (*BlockRegistry)(nil)
