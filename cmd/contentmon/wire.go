package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/eliteGoblin/focusd/content_mon/internal/config"
	"github.com/eliteGoblin/focusd/content_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/content_mon/internal/domain"
	"github.com/eliteGoblin/focusd/content_mon/internal/infra"
	"github.com/eliteGoblin/focusd/content_mon/internal/policy"
	"github.com/eliteGoblin/focusd/content_mon/internal/state"
	"github.com/eliteGoblin/focusd/content_mon/internal/usecase"
)

// engine holds the wired components for one process.
type engine struct {
	cfg       *config.Config
	logger    *zap.Logger
	journal   *infra.Journal
	display   *infra.X11Client
	processes domain.ProcessLookup

	cache    *state.ActivityCache
	blocks   *state.BlockRegistry
	resolver *usecase.ForegroundResolverImpl
	sampler  *usecase.SamplerImpl
	enforcer *usecase.EnforcerImpl
	recorder *daemon.Recorder
	monitor  *daemon.Monitor
}

// openJournal unlocks the encrypted journal in the configured data directory.
func openJournal(cfg *config.Config, logger *zap.Logger) (*infra.Journal, error) {
	dataDir, err := cfg.DataDir()
	if err != nil {
		return nil, err
	}
	key, _, err := infra.EnsureJournalKey(infra.NewFileKeyProvider(dataDir), dataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load journal key: %w", err)
	}
	return infra.OpenJournal(dataDir, key, logger)
}

// buildEngine wires every component. registry may be nil.
func buildEngine(cfg *config.Config, registry domain.DaemonRegistry, logger *zap.Logger) (*engine, error) {
	journal, err := openJournal(cfg, logger)
	if err != nil {
		return nil, err
	}

	durationPolicy, err := policy.NewRegistry().Lookup(cfg.Sampler.DurationPolicy)
	if err != nil {
		journal.Close()
		return nil, err
	}

	exemptions := cfg.Exemptions()
	processes := infra.NewProcessLookup()
	display := infra.NewX11Client("", logger.Named("x11"))

	neutralCommand := cfg.Enforcement.NeutralCommand
	if len(neutralCommand) == 0 {
		neutralCommand = infra.DefaultNeutralCommand
	}
	neutralizer := infra.NewCommandNeutralizer(neutralCommand, cfg.Enforcement.NeutralMinInterval, nil, logger.Named("neutral"))

	var classifier domain.Classifier = infra.NewCommandClassifier(cfg.Sampler.ClassifierCommand, nil, logger.Named("classifier"))
	if cfg.Sampler.ClassifierLogits {
		classifier = infra.NewSigmoidClassifier(classifier)
	}

	cache := state.NewActivityCache(exemptions)
	blocks := state.NewBlockRegistry(exemptions, durationPolicy, logger.Named("blocks"))

	resolver := usecase.NewForegroundResolver(
		usecase.ResolverConfig{
			Lookback:    cfg.Resolver.Lookback,
			HomeRecency: cfg.Resolver.HomeRecency,
			HomeGap:     cfg.Resolver.HomeGap,
		},
		journal, journal, cache, exemptions, logger.Named("resolver"))

	// The registry needs the resolver, which is built after it.
	blocks.BindEnforcement(resolver, neutralizer)

	sampler := usecase.NewSampler(
		usecase.SamplerConfig{
			Threshold:          cfg.Sampler.Threshold,
			ObjectionableIndex: cfg.Sampler.ObjectionableIndex,
			BlockDuration:      cfg.Sampler.BlockDuration,
			CacheMaxAge:        cfg.Resolver.CacheMaxAge,
		},
		infra.NewX11FrameSource(display), classifier, resolver, cache, blocks, neutralizer,
		exemptions, logger.Named("sampler"))

	enforcer := usecase.NewEnforcer(resolver, blocks, neutralizer, journal, exemptions, logger.Named("enforcer"))

	monitorConfig := daemon.DefaultMonitorConfig()
	monitorConfig.SampleInterval = cfg.Sampler.Interval
	monitorConfig.EnforcementInterval = cfg.Enforcement.Interval
	monitorConfig.PruneInterval = cfg.Enforcement.PruneInterval
	monitorConfig.PruneGrace = cfg.Enforcement.PruneGrace

	e := &engine{
		cfg:       cfg,
		logger:    logger,
		journal:   journal,
		display:   display,
		processes: processes,
		cache:     cache,
		blocks:    blocks,
		resolver:  resolver,
		sampler:   sampler,
		enforcer:  enforcer,
		monitor:   daemon.NewMonitor(monitorConfig, sampler, enforcer, blocks, registry, Version, logger.Named("monitor")),
	}

	if cfg.Recorder.Enabled {
		recorderConfig := daemon.DefaultRecorderConfig()
		recorderConfig.Interval = cfg.Recorder.Interval
		recorderConfig.Retention = cfg.Recorder.Retention
		recorderConfig.Refresh = cfg.RecorderRefresh()
		e.recorder = daemon.NewRecorder(recorderConfig,
			infra.NewX11FocusSource(display, processes, logger.Named("focus")),
			journal, journal, exemptions, logger.Named("recorder"))
	}

	return e, nil
}

// Run runs the monitor and, if enabled, the recorder until ctx is canceled.
func (e *engine) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.monitor.Run(gctx) })
	if e.recorder != nil {
		g.Go(func() error { return e.recorder.Run(gctx) })
	}
	return g.Wait()
}

// Close releases the journal and the display connection.
func (e *engine) Close() {
	e.display.Close()
	if err := e.journal.Close(); err != nil {
		e.logger.Warn("failed to close journal", zap.Error(err))
	}
}

// createDaemonLogger logs JSON to the configured files.
func createDaemonLogger(cfg *config.Config) *zap.Logger {
	zc := zap.NewProductionConfig()
	zc.OutputPaths = []string{cfg.Log.Path}
	zc.ErrorOutputPaths = []string{cfg.Log.ErrorPath}
	zc.EncoderConfig.TimeKey = "time"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zc.Build()
	if err != nil {
		// Fallback to stdout if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

// createCLILogger logs human-readable output to stderr.
func createCLILogger(verbose bool) *zap.Logger {
	zc := zap.NewDevelopmentConfig()
	if !verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := zc.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
