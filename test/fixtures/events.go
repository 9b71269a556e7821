// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"context"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/content_mon/internal/domain"
)

// Step is one scripted focus change, At seconds after the script base.
type Step struct {
	At      int
	Subject string
	Neutral bool
}

// EventScript replays focus changes into an event sink.
type EventScript struct {
	Base  time.Time
	Steps []Step
}

// NewEventScript creates a script anchored at base.
func NewEventScript(base time.Time, steps ...Step) *EventScript {
	return &EventScript{Base: base, Steps: steps}
}

// At returns the instant seconds after the base.
func (s *EventScript) At(seconds int) time.Time {
	return s.Base.Add(time.Duration(seconds) * time.Second)
}

// Play appends every step to sink.
func (s *EventScript) Play(sink domain.EventSink) error {
	for _, step := range s.Steps {
		ev := domain.ActivityEvent{
			Timestamp: s.At(step.At),
			SubjectID: step.Subject,
			Kind:      domain.KindForegroundEntered,
		}
		if step.Neutral {
			ev.Kind = domain.KindReturnedToNeutral
		}
		if err := sink.Append(ev); err != nil {
			return err
		}
	}
	return nil
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock at now.
func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// StaticFrames always returns the same small frame.
type StaticFrames struct{}

// CaptureLatestFrame returns a 1x1 black frame.
func (StaticFrames) CaptureLatestFrame(ctx context.Context) (*domain.Frame, error) {
	return &domain.Frame{Width: 1, Height: 1, Pix: []byte{0, 0, 0, 255}, CapturedAt: time.Now()}, nil
}

// ScoreClassifier returns a settable score vector.
type ScoreClassifier struct {
	mu     sync.Mutex
	scores []float32
}

// Set replaces the scores returned by Classify.
func (c *ScoreClassifier) Set(scores ...float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scores = scores
}

// Classify returns the configured scores.
func (c *ScoreClassifier) Classify(ctx context.Context, frame *domain.Frame) ([]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scores, nil
}

// CountingNeutralizer counts neutral-state transitions.
type CountingNeutralizer struct {
	mu    sync.Mutex
	calls int
}

// ForceNeutralState records one call.
func (n *CountingNeutralizer) ForceNeutralState(ctx context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
}

// Calls returns the number of calls so far.
func (n *CountingNeutralizer) Calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}
