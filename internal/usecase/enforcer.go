package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/content_mon/internal/domain"
	"github.com/eliteGoblin/focusd/content_mon/internal/policy"
)

// EnforcerImpl implements domain.Enforcer.
// Each tick resolves the foreground and, if that subject is blocked, forces
// the neutral state. It holds no state between ticks, so repeating a tick
// while a block is active just repeats the (idempotent) neutral action.
type EnforcerImpl struct {
	resolver    domain.ForegroundResolver
	blocks      domain.BlockRegistry
	neutralizer domain.Neutralizer
	permission  domain.PermissionState
	exemptions  *policy.Exemptions
	now         func() time.Time
	logger      *zap.Logger
}

// NewEnforcer creates a new enforcement checker. permission may be nil.
func NewEnforcer(
	resolver domain.ForegroundResolver,
	blocks domain.BlockRegistry,
	neutralizer domain.Neutralizer,
	permission domain.PermissionState,
	exemptions *policy.Exemptions,
	logger *zap.Logger,
) *EnforcerImpl {
	return &EnforcerImpl{
		resolver:    resolver,
		blocks:      blocks,
		neutralizer: neutralizer,
		permission:  permission,
		exemptions:  exemptions,
		now:         time.Now,
		logger:      logger,
	}
}

// WithClock replaces the time source (for testing).
func (e *EnforcerImpl) WithClock(now func() time.Time) *EnforcerImpl {
	e.now = now
	return e
}

// EnforceOnce runs a single enforcement tick. Missing permission is a skip.
func (e *EnforcerImpl) EnforceOnce(ctx context.Context) domain.EnforcementResult {
	now := e.now()
	result := domain.EnforcementResult{CheckedAt: now}

	if e.permission != nil && !e.permission.HasEventLogAccess() {
		return result
	}

	fg := e.resolver.Resolve(now)
	result.Foreground = fg
	if !fg.Resolved() || e.exemptions.IsExempt(fg.SubjectID) {
		return result
	}

	if !e.blocks.IsBlocked(fg.SubjectID, now) {
		return result
	}
	result.Blocked = true
	result.UnblockAt = e.blocks.UnblockDeadline(fg.SubjectID)

	e.logger.Debug("blocked subject in foreground",
		zap.String("subject", fg.SubjectID),
		zap.String("confidence", string(fg.Confidence)),
		zap.Time("unblock_at", result.UnblockAt))

	e.neutralizer.ForceNeutralState(ctx)
	result.Neutralized = true

	return result
}

// Ensure EnforcerImpl implements domain.Enforcer.
var _ domain.Enforcer = (*EnforcerImpl)(nil)
