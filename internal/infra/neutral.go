package infra

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/content_mon/internal/domain"
)

// DefaultNeutralCommand shows the desktop on EWMH window managers. It is a
// set, not a toggle, so repeating it is harmless.
var DefaultNeutralCommand = []string{"wmctrl", "-k", "on"}

// CommandNeutralizer implements domain.Neutralizer by running a command that
// brings the neutral surface to the front. Failures are logged, never returned.
// Calls closer together than MinInterval are coalesced.
type CommandNeutralizer struct {
	argv        []string
	runner      CommandRunner
	minInterval time.Duration
	now         func() time.Time
	logger      *zap.Logger

	mu   sync.Mutex
	last time.Time
}

// NewCommandNeutralizer creates a neutralizer running argv.
func NewCommandNeutralizer(argv []string, minInterval time.Duration, runner CommandRunner, logger *zap.Logger) *CommandNeutralizer {
	if runner == nil {
		runner = &ExecRunner{}
	}
	return &CommandNeutralizer{
		argv:        argv,
		runner:      runner,
		minInterval: minInterval,
		now:         time.Now,
		logger:      logger,
	}
}

// WithClock replaces the time source (for testing).
func (n *CommandNeutralizer) WithClock(now func() time.Time) *CommandNeutralizer {
	n.now = now
	return n
}

// ForceNeutralState runs the neutral command.
func (n *CommandNeutralizer) ForceNeutralState(ctx context.Context) {
	if len(n.argv) == 0 {
		n.logger.Warn("no neutral command configured")
		return
	}

	now := n.now()
	n.mu.Lock()
	if n.minInterval > 0 && !n.last.IsZero() && now.Sub(n.last) < n.minInterval {
		n.mu.Unlock()
		return
	}
	n.last = now
	n.mu.Unlock()

	if err := n.runner.Run(ctx, n.argv[0], n.argv[1:]...); err != nil {
		n.logger.Warn("neutral command failed",
			zap.String("command", strings.Join(n.argv, " ")),
			zap.Error(err))
		return
	}
	n.logger.Debug("forced neutral state")
}

// Ensure CommandNeutralizer implements domain.Neutralizer.
var _ domain.Neutralizer = (*CommandNeutralizer)(nil)
