package daemon

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/content_mon/internal/domain"
)

type countingSampler struct {
	mu    sync.Mutex
	calls int
}

func (s *countingSampler) SampleOnce(ctx context.Context) domain.SampleResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return domain.SampleResult{SampledAt: time.Now()}
}

func (s *countingSampler) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// blockingSampler parks inside SampleOnce until released or canceled,
// standing in for a slow classifier.
type blockingSampler struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
	mu      sync.Mutex
	calls   int
}

func newBlockingSampler() *blockingSampler {
	return &blockingSampler{started: make(chan struct{}), release: make(chan struct{})}
}

func (s *blockingSampler) SampleOnce(ctx context.Context) domain.SampleResult {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	s.once.Do(func() { close(s.started) })

	select {
	case <-s.release:
	case <-ctx.Done():
	}
	return domain.SampleResult{SampledAt: time.Now()}
}

func (s *blockingSampler) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type countingEnforcer struct {
	mu    sync.Mutex
	calls int
}

func (e *countingEnforcer) EnforceOnce(ctx context.Context) domain.EnforcementResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	return domain.EnforcementResult{CheckedAt: time.Now()}
}

func (e *countingEnforcer) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type mockDaemonRegistry struct {
	mu          sync.Mutex
	entry       *domain.DaemonEntry
	heartbeats  int
	cleared     bool
	registerErr error
}

func (m *mockDaemonRegistry) Register(entry domain.DaemonEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registerErr != nil {
		return m.registerErr
	}
	m.entry = &entry
	return nil
}

func (m *mockDaemonRegistry) UpdateHeartbeat() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heartbeats++
	return nil
}

func (m *mockDaemonRegistry) Get() (*domain.DaemonEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entry, nil
}

func (m *mockDaemonRegistry) IsAlive() bool { return true }

func (m *mockDaemonRegistry) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared = true
	m.entry = nil
	return nil
}

// scriptedFocus returns subjects in order, repeating the last one.
type scriptedFocus struct {
	subjects []string
	errAt    map[int]bool
	i        int
}

func (f *scriptedFocus) ActiveSubject(ctx context.Context) (string, error) {
	i := f.i
	f.i++
	if f.errAt[i] {
		return "", errors.New("display unavailable")
	}
	if i >= len(f.subjects) {
		i = len(f.subjects) - 1
	}
	return f.subjects[i], nil
}

type memorySink struct {
	events []domain.ActivityEvent
	err    error
}

func (s *memorySink) Append(event domain.ActivityEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

// Query returns appended events with Timestamp in [from, to].
func (s *memorySink) Query(from, to time.Time) ([]domain.ActivityEvent, error) {
	var result []domain.ActivityEvent
	for _, ev := range s.events {
		if !ev.Timestamp.Before(from) && !ev.Timestamp.After(to) {
			result = append(result, ev)
		}
	}
	return result, nil
}

type mockPruner struct {
	cutoffs []time.Time
}

func (p *mockPruner) Prune(before time.Time) (int64, error) {
	p.cutoffs = append(p.cutoffs, before)
	return 1, nil
}
