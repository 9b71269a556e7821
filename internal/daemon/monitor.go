// Package daemon runs the sampling, enforcement and recording loops.
package daemon

import (
	"context"
	"errors"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eliteGoblin/focusd/content_mon/internal/domain"
)

// MonitorConfig holds monitor loop configuration.
type MonitorConfig struct {
	SampleInterval      time.Duration // Re-armed after each sampling cycle
	EnforcementInterval time.Duration // Enforcement tick period
	PruneInterval       time.Duration // How often to drop long-expired blocks
	PruneGrace          time.Duration // How long after expiry an entry is kept
	HeartbeatInterval   time.Duration // How often to update the daemon registry
}

// DefaultMonitorConfig returns default monitor configuration.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		SampleInterval:      10 * time.Second,
		EnforcementInterval: time.Second,
		PruneInterval:       10 * time.Minute,
		PruneGrace:          time.Hour,
		HeartbeatInterval:   30 * time.Second,
	}
}

// Monitor is the block-enforcement engine.
// It runs the classification sampler and the enforcement checker on their own
// cadences. The two loops only meet in the shared block registry and cache.
type Monitor struct {
	config   MonitorConfig
	sampler  domain.Sampler
	enforcer domain.Enforcer
	blocks   domain.BlockRegistry
	registry domain.DaemonRegistry
	entry    domain.DaemonEntry
	now      func() time.Time
	logger   *zap.Logger

	// Optional hooks, called after each cycle. Used by status output and tests.
	OnSample  func(domain.SampleResult)
	OnEnforce func(domain.EnforcementResult)
}

// NewMonitor creates a new monitor. registry may be nil for foreground runs.
func NewMonitor(
	config MonitorConfig,
	sampler domain.Sampler,
	enforcer domain.Enforcer,
	blocks domain.BlockRegistry,
	registry domain.DaemonRegistry,
	appVersion string,
	logger *zap.Logger,
) *Monitor {
	return &Monitor{
		config:   config,
		sampler:  sampler,
		enforcer: enforcer,
		blocks:   blocks,
		registry: registry,
		entry: domain.DaemonEntry{
			Version:    1,
			PID:        os.Getpid(),
			AppVersion: appVersion,
		},
		now:    time.Now,
		logger: logger,
	}
}

// Run starts both loops and blocks until ctx is canceled.
// Cycle failures never stop a loop; only cancellation does. A tick that
// fires after cancellation is dropped, and Run returns only once both loops
// have exited, so nothing touches shared state afterwards.
func (m *Monitor) Run(ctx context.Context) error {
	if m.registry != nil {
		m.entry.StartedAt = m.now().Unix()
		if err := m.registry.Register(m.entry); err != nil {
			m.logger.Error("failed to register monitor", zap.Error(err))
			return err
		}
		defer func() {
			if err := m.registry.Clear(); err != nil {
				m.logger.Warn("failed to clear daemon registry", zap.Error(err))
			}
		}()
	}

	m.logger.Info("monitor started",
		zap.Int("pid", m.entry.PID),
		zap.Duration("sample_interval", m.config.SampleInterval),
		zap.Duration("enforcement_interval", m.config.EnforcementInterval))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.runSampler(gctx) })
	g.Go(func() error { return m.runEnforcement(gctx) })

	err := g.Wait()
	m.logger.Info("monitor stopping")
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ctx.Err()
	}
	return err
}

// runSampler samples once right away, then waits a full interval after each
// cycle finishes. A slow classifier stretches the period instead of queueing.
func (m *Monitor) runSampler(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			result := m.sampler.SampleOnce(ctx)
			m.logSample(result)
			if m.OnSample != nil {
				m.OnSample(result)
			}
			timer.Reset(m.config.SampleInterval)
		}
	}
}

func (m *Monitor) runEnforcement(ctx context.Context) error {
	enforceTicker := time.NewTicker(m.config.EnforcementInterval)
	pruneTicker := time.NewTicker(m.config.PruneInterval)
	var heartbeat <-chan time.Time
	if m.registry != nil {
		heartbeatTicker := time.NewTicker(m.config.HeartbeatInterval)
		defer heartbeatTicker.Stop()
		heartbeat = heartbeatTicker.C
	}

	defer func() {
		enforceTicker.Stop()
		pruneTicker.Stop()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-enforceTicker.C:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			result := m.enforcer.EnforceOnce(ctx)
			if result.Neutralized {
				m.logger.Info("blocked subject neutralized",
					zap.String("subject", result.Foreground.SubjectID),
					zap.Time("unblock_at", result.UnblockAt))
			}
			if m.OnEnforce != nil {
				m.OnEnforce(result)
			}

		case <-pruneTicker.C:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if n := m.blocks.Prune(m.now(), m.config.PruneGrace); n > 0 {
				m.logger.Debug("pruned expired blocks", zap.Int("count", n))
			}

		case <-heartbeat:
			if err := m.registry.UpdateHeartbeat(); err != nil {
				m.logger.Warn("failed to update heartbeat", zap.Error(err))
			}
		}
	}
}

func (m *Monitor) logSample(result domain.SampleResult) {
	switch {
	case result.Skipped != nil:
		m.logger.Debug("sample skipped",
			zap.Error(result.Skipped),
			zap.Int64("duration_ms", result.DurationMs))
	case result.Flagged:
		m.logger.Info("sample flagged",
			zap.String("blocked", result.BlockedID),
			zap.String("source", string(result.Source)),
			zap.Bool("neutralized", result.Neutralize),
			zap.Int64("duration_ms", result.DurationMs))
	default:
		m.logger.Debug("sample clean", zap.Int64("duration_ms", result.DurationMs))
	}
}
