package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/eliteGoblin/focusd/content_mon/internal/domain"
)

const registryFileName = "daemon.json"

// FileRegistry implements domain.DaemonRegistry using a JSON file in the data directory.
type FileRegistry struct {
	path      string
	processes domain.ProcessLookup
	now       func() time.Time
}

// NewFileRegistry creates a daemon registry inside dataDir.
func NewFileRegistry(dataDir string, processes domain.ProcessLookup) *FileRegistry {
	return NewFileRegistryWithPath(filepath.Join(dataDir, registryFileName), processes)
}

// NewFileRegistryWithPath creates a registry at a specific path (for testing).
func NewFileRegistryWithPath(path string, processes domain.ProcessLookup) *FileRegistry {
	return &FileRegistry{
		path:      path,
		processes: processes,
		now:       time.Now,
	}
}

// Path returns the registry file path.
func (r *FileRegistry) Path() string {
	return r.path
}

// Register saves the daemon entry, stamping the heartbeat.
func (r *FileRegistry) Register(entry domain.DaemonEntry) error {
	if entry.Version == 0 {
		entry.Version = 1
	}
	if entry.StartedAt == 0 {
		entry.StartedAt = r.now().Unix()
	}
	entry.LastHeartbeat = r.now().Unix()
	return r.atomicWrite(&entry)
}

// UpdateHeartbeat updates timestamp for liveness check.
func (r *FileRegistry) UpdateHeartbeat() error {
	entry, err := r.Get()
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("daemon not registered")
	}

	entry.LastHeartbeat = r.now().Unix()
	return r.atomicWrite(entry)
}

// Get returns the stored entry, or nil if none exists.
func (r *FileRegistry) Get() (*domain.DaemonEntry, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entry domain.DaemonEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// IsAlive checks whether the registered PID is running.
func (r *FileRegistry) IsAlive() bool {
	entry, err := r.Get()
	if err != nil || entry == nil || entry.PID == 0 {
		return false
	}
	return r.processes.IsRunning(entry.PID)
}

// Clear removes the registry file. A missing file is not an error.
func (r *FileRegistry) Clear() error {
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// atomicWrite writes registry to file atomically (write + rename).
func (r *FileRegistry) atomicWrite(entry *domain.DaemonEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return err
	}

	// Write to temp file first (unique per process to avoid race)
	tmpPath := fmt.Sprintf("%s.%d.tmp", r.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Ensure FileRegistry implements domain.DaemonRegistry.
var _ domain.DaemonRegistry = (*FileRegistry)(nil)
