package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/content_mon/internal/domain"
	"github.com/eliteGoblin/focusd/content_mon/internal/policy"
)

// SamplerConfig holds classification decision settings.
type SamplerConfig struct {
	Threshold          float32       // Score strictly above this is objectionable
	ObjectionableIndex int           // Which score in the vector to compare
	BlockDuration      time.Duration // How long a flagged subject stays blocked
	CacheMaxAge        time.Duration // Oldest cache entry usable as a block target
}

// DefaultSamplerConfig returns default sampler configuration.
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		Threshold:          0.5,
		ObjectionableIndex: 0,
		BlockDuration:      policy.DefaultBlockDuration,
		CacheMaxAge:        60 * time.Second,
	}
}

// SamplerImpl implements domain.Sampler.
// One cycle: capture a frame, classify it, and if flagged pick a block
// target via resolver -> cache -> sentinel, in that fixed order.
type SamplerImpl struct {
	config      SamplerConfig
	frames      domain.FrameSource
	classifier  domain.Classifier
	resolver    domain.ForegroundResolver
	cache       domain.ActivityCache
	blocks      domain.BlockRegistry
	neutralizer domain.Neutralizer
	exemptions  *policy.Exemptions
	now         func() time.Time
	logger      *zap.Logger
}

// NewSampler creates a new classification sampler.
func NewSampler(
	config SamplerConfig,
	frames domain.FrameSource,
	classifier domain.Classifier,
	resolver domain.ForegroundResolver,
	cache domain.ActivityCache,
	blocks domain.BlockRegistry,
	neutralizer domain.Neutralizer,
	exemptions *policy.Exemptions,
	logger *zap.Logger,
) *SamplerImpl {
	return &SamplerImpl{
		config:      config,
		frames:      frames,
		classifier:  classifier,
		resolver:    resolver,
		cache:       cache,
		blocks:      blocks,
		neutralizer: neutralizer,
		exemptions:  exemptions,
		now:         time.Now,
		logger:      logger,
	}
}

// WithClock replaces the time source (for testing).
func (s *SamplerImpl) WithClock(now func() time.Time) *SamplerImpl {
	s.now = now
	return s
}

// SampleOnce runs a single capture-classify-decide cycle. Failures of any
// collaborator skip the cycle; they are reported in the result, never returned.
func (s *SamplerImpl) SampleOnce(ctx context.Context) (result domain.SampleResult) {
	start := time.Now()
	result = domain.SampleResult{SampledAt: s.now()}
	defer func() { result.DurationMs = time.Since(start).Milliseconds() }()

	frame, err := s.frames.CaptureLatestFrame(ctx)
	if err != nil || frame == nil {
		result.Skipped = captureError(err)
		s.logger.Debug("no frame this cycle, skipping", zap.Error(result.Skipped))
		return result
	}

	scores, err := s.classifier.Classify(ctx, frame)
	if err != nil {
		result.Skipped = err
		s.logger.Warn("classification failed, skipping", zap.Error(err))
		return result
	}
	if len(scores) <= s.config.ObjectionableIndex {
		result.Skipped = fmt.Errorf("%w: got %d scores", domain.ErrClassifierNotReady, len(scores))
		s.logger.Debug("classifier not ready, skipping", zap.Int("scores", len(scores)))
		return result
	}
	result.Scores = scores

	score := scores[s.config.ObjectionableIndex]
	if score <= s.config.Threshold {
		return result
	}
	result.Flagged = true

	s.logger.Info("objectionable content detected",
		zap.Float32("score", score),
		zap.Float32("threshold", s.config.Threshold))

	s.blockTarget(ctx, &result)
	return result
}

// blockTarget applies the fallback chain and records the outcome in result.
func (s *SamplerImpl) blockTarget(ctx context.Context, result *domain.SampleResult) {
	now := s.now()

	if fg := s.resolver.Resolve(now); fg.Resolved() && !s.exemptions.IsExempt(fg.SubjectID) {
		s.block(ctx, result, fg.SubjectID, domain.SourceResolved)
		return
	}

	if cached, ok := s.cache.Read(now, s.config.CacheMaxAge); ok && !s.exemptions.IsExempt(cached.SubjectID) {
		s.block(ctx, result, cached.SubjectID, domain.SourceCache)
		return
	}

	// Nothing to key on: the sentinel entry cannot be matched by a later
	// resolution, so neutralize directly.
	s.block(ctx, result, policy.SentinelSubject, domain.SourceSentinel)
	s.neutralizer.ForceNeutralState(ctx)
	result.Neutralize = true
}

func (s *SamplerImpl) block(ctx context.Context, result *domain.SampleResult, subjectID string, source domain.BlockSource) {
	deadline, ok := s.blocks.Block(ctx, subjectID, s.config.BlockDuration)
	if !ok {
		s.logger.Warn("block rejected", zap.String("subject", subjectID))
		return
	}
	result.BlockedID = subjectID
	result.Source = source

	s.logger.Info("block target selected",
		zap.String("subject", subjectID),
		zap.String("source", string(source)),
		zap.Time("unblock_at", deadline))
}

func captureError(err error) error {
	if err == nil {
		return domain.ErrCaptureUnavailable
	}
	if errors.Is(err, domain.ErrPermissionDenied) || errors.Is(err, domain.ErrCaptureUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrCaptureUnavailable, err)
}

// Ensure SamplerImpl implements domain.Sampler.
var _ domain.Sampler = (*SamplerImpl)(nil)
