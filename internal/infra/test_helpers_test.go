package infra

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// mockProcessLookup is a test double for domain.ProcessLookup
type mockProcessLookup struct {
	names   map[int]string
	running map[int]bool
}

func newMockProcessLookup() *mockProcessLookup {
	return &mockProcessLookup{
		names:   make(map[int]string),
		running: make(map[int]bool),
	}
}

func (m *mockProcessLookup) NameOf(pid int) (string, error) {
	name, ok := m.names[pid]
	if !ok {
		return "", errors.New("process not found")
	}
	return name, nil
}

func (m *mockProcessLookup) IsRunning(pid int) bool {
	return m.running[pid]
}

// mockRunner records commands instead of executing them
type mockRunner struct {
	mu     sync.Mutex
	calls  []string
	stdin  []byte
	output []byte
	err    error
}

func (m *mockRunner) Run(ctx context.Context, name string, args ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, strings.Join(append([]string{name}, args...), " "))
	return m.err
}

func (m *mockRunner) Output(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, strings.Join(append([]string{name}, args...), " "))
	m.stdin = stdin
	return m.output, m.err
}

func (m *mockRunner) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
