package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/content_mon/internal/domain"
)

// mockEventLog implements domain.EventLog over a fixed event list.
type mockEventLog struct {
	events  []domain.ActivityEvent
	err     error
	queries int
}

func (m *mockEventLog) Query(from, to time.Time) ([]domain.ActivityEvent, error) {
	m.queries++
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.ActivityEvent
	for _, ev := range m.events {
		if !ev.Timestamp.Before(from) && !ev.Timestamp.After(to) {
			out = append(out, ev)
		}
	}
	return out, nil
}

// mockPermission implements domain.PermissionState.
type mockPermission struct {
	granted bool
}

func (m *mockPermission) HasEventLogAccess() bool {
	return m.granted
}

// mockCache implements domain.ActivityCache and records observations.
type mockCache struct {
	observed []domain.CachedForeground
	value    *domain.CachedForeground
}

func (m *mockCache) Observe(subjectID string, at time.Time) {
	m.observed = append(m.observed, domain.CachedForeground{SubjectID: subjectID, ObservedAt: at})
}

func (m *mockCache) Read(now time.Time, maxAge time.Duration) (domain.CachedForeground, bool) {
	if m.value == nil || now.Sub(m.value.ObservedAt) > maxAge {
		return domain.CachedForeground{}, false
	}
	return *m.value, true
}

// mockResolver implements domain.ForegroundResolver.
type mockResolver struct {
	result domain.ResolvedForeground
	calls  int
}

func (m *mockResolver) Resolve(now time.Time) domain.ResolvedForeground {
	m.calls++
	return m.result
}

// mockFrameSource implements domain.FrameSource.
type mockFrameSource struct {
	frame *domain.Frame
	err   error
}

func (m *mockFrameSource) CaptureLatestFrame(ctx context.Context) (*domain.Frame, error) {
	return m.frame, m.err
}

// mockClassifier implements domain.Classifier.
type mockClassifier struct {
	scores []float32
	err    error
	calls  int
}

func (m *mockClassifier) Classify(ctx context.Context, frame *domain.Frame) ([]float32, error) {
	m.calls++
	return m.scores, m.err
}

// mockNeutralizer counts neutral-state transitions.
type mockNeutralizer struct {
	mu    sync.Mutex
	calls int
}

func (m *mockNeutralizer) ForceNeutralState(ctx context.Context) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
}

func (m *mockNeutralizer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// at returns a fixed base instant offset by seconds.
func at(seconds int) time.Time {
	return time.Unix(1_700_000_000, 0).Add(time.Duration(seconds) * time.Second)
}

func entered(seconds int, subject string) domain.ActivityEvent {
	return domain.ActivityEvent{Timestamp: at(seconds), SubjectID: subject, Kind: domain.KindForegroundEntered}
}
