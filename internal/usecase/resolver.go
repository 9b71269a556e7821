// Package usecase contains application business logic.
package usecase

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/content_mon/internal/domain"
	"github.com/eliteGoblin/focusd/content_mon/internal/policy"
)

// ResolverConfig holds foreground resolution windows.
type ResolverConfig struct {
	Lookback    time.Duration // Query window; also the High-confidence freshness bound
	HomeRecency time.Duration // Neutral-surface event must be at most this old
	HomeGap     time.Duration // Last app must precede the neutral-surface event by less than this
}

// DefaultResolverConfig returns default resolver configuration.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		Lookback:    60 * time.Second,
		HomeRecency: 10 * time.Second,
		HomeGap:     15 * time.Second,
	}
}

// ForegroundResolverImpl implements domain.ForegroundResolver.
// It reconstructs the active subject from a window of the event log and
// keeps the activity cache warm as a side effect of scanning.
type ForegroundResolverImpl struct {
	config     ResolverConfig
	eventLog   domain.EventLog
	permission domain.PermissionState
	cache      domain.ActivityCache
	exemptions *policy.Exemptions
	logger     *zap.Logger
}

// NewForegroundResolver creates a new resolver. permission may be nil when
// the event log needs no access grant.
func NewForegroundResolver(
	config ResolverConfig,
	eventLog domain.EventLog,
	permission domain.PermissionState,
	cache domain.ActivityCache,
	exemptions *policy.Exemptions,
	logger *zap.Logger,
) *ForegroundResolverImpl {
	return &ForegroundResolverImpl{
		config:     config,
		eventLog:   eventLog,
		permission: permission,
		cache:      cache,
		exemptions: exemptions,
		logger:     logger,
	}
}

// Resolve returns the best-effort foreground subject at now.
//
// Decision order:
//  1. the latest non-neutral, non-self foreground event inside the lookback window (High)
//  2. the last non-self app, when the neutral surface came up shortly after it (High)
//  3. the latest non-self foreground event, else the latest foreground event (Stale)
//  4. no resolution
func (r *ForegroundResolverImpl) Resolve(now time.Time) domain.ResolvedForeground {
	if r.permission != nil && !r.permission.HasEventLogAccess() {
		r.logger.Debug("event log access not granted, skipping resolution")
		return domain.NoResolution()
	}

	events, err := r.eventLog.Query(now.Add(-r.config.Lookback), now)
	if err != nil {
		if errors.Is(err, domain.ErrPermissionDenied) {
			r.logger.Debug("event log query denied", zap.Error(err))
		} else {
			r.logger.Warn("event log query failed", zap.Error(err))
		}
		return domain.NoResolution()
	}
	if len(events) == 0 {
		return domain.NoResolution()
	}

	var lastForeground, lastHome, lastNonSelf *domain.ActivityEvent
	for i := range events {
		ev := &events[i]

		if r.isNeutralEvent(ev) {
			lastHome = latest(lastHome, ev)
			continue
		}
		if ev.Kind != domain.KindForegroundEntered || ev.SubjectID == "" {
			continue
		}

		lastForeground = latest(lastForeground, ev)
		if !r.exemptions.IsSelf(ev.SubjectID) {
			lastNonSelf = latest(lastNonSelf, ev)
			r.cache.Observe(ev.SubjectID, ev.Timestamp)
		}
	}

	if lastForeground != nil && !r.exemptions.IsSelf(lastForeground.SubjectID) &&
		now.Sub(lastForeground.Timestamp) <= r.config.Lookback {
		return resolved(lastForeground, domain.ConfidenceHigh)
	}

	if lastHome != nil && lastNonSelf != nil &&
		now.Sub(lastHome.Timestamp) <= r.config.HomeRecency &&
		lastNonSelf.Timestamp.Before(lastHome.Timestamp) &&
		lastHome.Timestamp.Sub(lastNonSelf.Timestamp) < r.config.HomeGap {
		r.logger.Debug("neutral surface raced last app, using last app",
			zap.String("subject", lastNonSelf.SubjectID),
			zap.Time("home_at", lastHome.Timestamp))
		return resolved(lastNonSelf, domain.ConfidenceHigh)
	}

	if lastNonSelf != nil {
		return resolved(lastNonSelf, domain.ConfidenceStale)
	}
	if lastForeground != nil {
		return resolved(lastForeground, domain.ConfidenceStale)
	}
	return domain.NoResolution()
}

// isNeutralEvent reports whether ev landed on the neutral surface.
func (r *ForegroundResolverImpl) isNeutralEvent(ev *domain.ActivityEvent) bool {
	switch ev.Kind {
	case domain.KindReturnedToNeutral:
		return true
	case domain.KindForegroundEntered:
		return r.exemptions.IsNeutral(ev.SubjectID)
	}
	return false
}

// latest keeps the event with the newest timestamp; ties go to the later one scanned.
func latest(cur, ev *domain.ActivityEvent) *domain.ActivityEvent {
	if cur == nil || !ev.Timestamp.Before(cur.Timestamp) {
		return ev
	}
	return cur
}

func resolved(ev *domain.ActivityEvent, confidence domain.Confidence) domain.ResolvedForeground {
	return domain.ResolvedForeground{
		SubjectID:  ev.SubjectID,
		AsOf:       ev.Timestamp,
		Confidence: confidence,
	}
}

// Ensure ForegroundResolverImpl implements domain.ForegroundResolver.
var _ domain.ForegroundResolver = (*ForegroundResolverImpl)(nil)
