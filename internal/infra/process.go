// Package infra implements platform adapters (journal, X11, process, commands).
package infra

import (
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/eliteGoblin/focusd/content_mon/internal/domain"
)

// ProcessLookupImpl implements domain.ProcessLookup using gopsutil.
type ProcessLookupImpl struct{}

// NewProcessLookup creates a new process lookup.
func NewProcessLookup() domain.ProcessLookup {
	return &ProcessLookupImpl{}
}

// NameOf returns the lowercased executable name for pid.
func (pl *ProcessLookupImpl) NameOf(pid int) (string, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return "", err
	}
	name, err := p.Name()
	if err != nil {
		return "", err
	}
	return strings.ToLower(name), nil
}

// IsRunning checks if a PID exists and is running.
func (pl *ProcessLookupImpl) IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	exists, err := process.PidExists(int32(pid))
	return err == nil && exists
}

// Ensure ProcessLookupImpl implements domain.ProcessLookup.
var _ domain.ProcessLookup = (*ProcessLookupImpl)(nil)
