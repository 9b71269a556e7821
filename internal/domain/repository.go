package domain

import (
	"context"
	"time"
)

// EventLog is the platform's append-only activity log.
// Implementation: SQLCipher journal fed by the X11 recorder.
type EventLog interface {
	// Query returns events with Timestamp in [from, to], oldest first.
	// Returns ErrPermissionDenied when the log cannot be read, which is
	// distinct from an empty result.
	Query(from, to time.Time) ([]ActivityEvent, error)
}

// EventSink accepts new activity events (the recorder side of the log).
type EventSink interface {
	Append(event ActivityEvent) error
}

// PermissionState reports whether the event log is currently readable.
type PermissionState interface {
	HasEventLogAccess() bool
}

// FocusSource reports the subject that currently holds input focus.
// Implementation: X11 _NET_ACTIVE_WINDOW via xgb.
type FocusSource interface {
	// ActiveSubject returns the focused subject id, or "" when the neutral
	// surface (desktop, root window, nothing) has focus.
	ActiveSubject(ctx context.Context) (string, error)
}

// FrameSource produces the latest screen frame.
type FrameSource interface {
	// CaptureLatestFrame returns nil with no error when nothing is available.
	CaptureLatestFrame(ctx context.Context) (*Frame, error)
}

// Classifier scores a frame. Scores are already activation-applied and in [0,1].
// An empty slice means the classifier is not ready.
type Classifier interface {
	Classify(ctx context.Context, frame *Frame) ([]float32, error)
}

// Neutralizer forces the foreground to the neutral surface.
// Safe to call repeatedly; failures are handled by the implementation.
type Neutralizer interface {
	ForceNeutralState(ctx context.Context)
}

// ForegroundResolver infers the active subject from the event log.
type ForegroundResolver interface {
	Resolve(now time.Time) ResolvedForeground
}

// ActivityCache holds the last high-confidence non-exempt observation.
type ActivityCache interface {
	// Observe upserts the observation unless at is older than the stored one.
	Observe(subjectID string, at time.Time)

	// Read returns the observation if it is no older than maxAge at now.
	Read(now time.Time, maxAge time.Duration) (CachedForeground, bool)
}

// BlockRegistry maps subjects to unblock deadlines.
type BlockRegistry interface {
	// Block sets the deadline for subjectID. Exempt subjects are ignored.
	// Returns the stored deadline and whether the block was accepted.
	Block(ctx context.Context, subjectID string, d time.Duration) (time.Time, bool)

	// IsBlocked reports whether an entry exists and now is before its deadline.
	IsBlocked(subjectID string, now time.Time) bool

	// UnblockDeadline returns the stored deadline or the zero time.
	UnblockDeadline(subjectID string) time.Time

	// Prune drops entries whose deadline passed more than grace ago.
	Prune(now time.Time, grace time.Duration) int

	// Snapshot returns a copy of all entries.
	Snapshot() []BlockEntry
}

// Sampler runs one capture-and-classify cycle.
type Sampler interface {
	SampleOnce(ctx context.Context) SampleResult
}

// Enforcer runs one enforcement tick.
type Enforcer interface {
	EnforceOnce(ctx context.Context) EnforcementResult
}

// DaemonRegistry records the running monitor process for status checks.
// Implementation: JSON file in the data directory.
type DaemonRegistry interface {
	// Register saves the daemon's PID.
	Register(entry DaemonEntry) error

	// UpdateHeartbeat updates timestamp for liveness check.
	UpdateHeartbeat() error

	// Get returns the stored entry, or nil if none exists.
	Get() (*DaemonEntry, error)

	// IsAlive checks whether the registered PID is running.
	IsAlive() bool

	// Clear removes the registry file.
	Clear() error
}

// ProcessLookup resolves process identities.
// Implementation: uses gopsutil for cross-platform support.
type ProcessLookup interface {
	// NameOf returns the executable name for pid.
	NameOf(pid int) (string, error)

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool
}

// KeyProvider abstracts the source of the journal encryption key.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}
