package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/content_mon/internal/domain"
	"github.com/eliteGoblin/focusd/content_mon/internal/policy"
)

// JournalPruner drops events older than a cutoff.
type JournalPruner interface {
	Prune(before time.Time) (int64, error)
}

// RecorderConfig holds recorder configuration.
type RecorderConfig struct {
	Interval      time.Duration // Focus poll period
	Retention     time.Duration // Events older than this are pruned
	PruneInterval time.Duration // How often to prune the journal
	Refresh       time.Duration // Re-append an unchanged foreground subject this often; keep below the resolver lookback
}

// DefaultRecorderConfig returns default recorder configuration.
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		Interval:      500 * time.Millisecond,
		Retention:     24 * time.Hour,
		PruneInterval: 10 * time.Minute,
		Refresh:       30 * time.Second,
	}
}

// Recorder feeds the event journal from the platform focus source.
// It appends one event per focus change, and re-appends a subject that keeps
// focus every Refresh so a long session never ages out of the lookback window.
// The neutral surface is not refreshed.
type Recorder struct {
	config     RecorderConfig
	focus      domain.FocusSource
	sink       domain.EventSink
	pruner     JournalPruner
	exemptions *policy.Exemptions
	now        func() time.Time
	logger     *zap.Logger

	last    string
	lastAt  time.Time
	hasLast bool
}

// NewRecorder creates a new recorder. pruner may be nil.
func NewRecorder(
	config RecorderConfig,
	focus domain.FocusSource,
	sink domain.EventSink,
	pruner JournalPruner,
	exemptions *policy.Exemptions,
	logger *zap.Logger,
) *Recorder {
	return &Recorder{
		config:     config,
		focus:      focus,
		sink:       sink,
		pruner:     pruner,
		exemptions: exemptions,
		now:        time.Now,
		logger:     logger,
	}
}

// WithClock replaces the time source (for testing).
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Run polls focus until ctx is canceled.
func (r *Recorder) Run(ctx context.Context) error {
	r.logger.Info("recorder started", zap.Duration("interval", r.config.Interval))

	r.RecordOnce(ctx)
	r.prune()

	pollTicker := time.NewTicker(r.config.Interval)
	pruneTicker := time.NewTicker(r.config.PruneInterval)
	defer func() {
		pollTicker.Stop()
		pruneTicker.Stop()
	}()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("recorder stopping")
			return ctx.Err()
		case <-pollTicker.C:
			r.RecordOnce(ctx)
		case <-pruneTicker.C:
			r.prune()
		}
	}
}

// RecordOnce polls focus once and appends an event if the subject changed
// or its last event is due for a refresh. Returns the appended event, if any.
func (r *Recorder) RecordOnce(ctx context.Context) (domain.ActivityEvent, bool) {
	subject, err := r.focus.ActiveSubject(ctx)
	if err != nil {
		r.logger.Debug("focus query failed", zap.Error(err))
		return domain.ActivityEvent{}, false
	}

	event := domain.ActivityEvent{
		Timestamp: r.now(),
		SubjectID: subject,
		Kind:      domain.KindForegroundEntered,
	}
	if subject == "" || r.exemptions.IsNeutral(subject) {
		event.SubjectID = r.exemptions.NeutralID()
		event.Kind = domain.KindReturnedToNeutral
	}

	refresh := false
	if r.hasLast && event.SubjectID == r.last {
		if !r.refreshDue(event) {
			return domain.ActivityEvent{}, false
		}
		refresh = true
	}

	if err := r.sink.Append(event); err != nil {
		// Leave last untouched so the next poll retries.
		r.logger.Warn("failed to append activity event",
			zap.String("subject", event.SubjectID),
			zap.Error(err))
		return domain.ActivityEvent{}, false
	}

	r.last, r.lastAt, r.hasLast = event.SubjectID, event.Timestamp, true
	if refresh {
		r.logger.Debug("focus refreshed", zap.String("subject", event.SubjectID))
	} else {
		r.logger.Debug("focus changed",
			zap.String("subject", event.SubjectID),
			zap.String("kind", string(event.Kind)))
	}
	return event, true
}

func (r *Recorder) refreshDue(event domain.ActivityEvent) bool {
	if r.config.Refresh <= 0 || event.Kind != domain.KindForegroundEntered {
		return false
	}
	return event.Timestamp.Sub(r.lastAt) >= r.config.Refresh
}

func (r *Recorder) prune() {
	if r.pruner == nil || r.config.Retention <= 0 {
		return
	}
	n, err := r.pruner.Prune(r.now().Add(-r.config.Retention))
	if err != nil {
		r.logger.Warn("failed to prune journal", zap.Error(err))
		return
	}
	if n > 0 {
		r.logger.Debug("pruned journal", zap.Int64("rows", n))
	}
}
