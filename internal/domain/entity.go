// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import "time"

// EventKind classifies an activity transition reported by the platform.
type EventKind string

const (
	// KindForegroundEntered means a subject moved to the foreground.
	KindForegroundEntered EventKind = "foreground_entered"
	// KindReturnedToNeutral means the user landed on the neutral surface (desktop/launcher).
	KindReturnedToNeutral EventKind = "returned_to_neutral"
)

// ActivityEvent is a single activity transition read from the event log.
// Events are immutable and ordered by Timestamp, but arrival order is not
// guaranteed to match.
type ActivityEvent struct {
	ID        string
	Timestamp time.Time
	SubjectID string
	Kind      EventKind
}

// Confidence tells whether a resolution is inside its freshness window.
type Confidence string

const (
	ConfidenceHigh  Confidence = "high"
	ConfidenceStale Confidence = "stale"
)

// ResolvedForeground is the best-effort answer to "what is active right now".
// An empty SubjectID means no resolution.
type ResolvedForeground struct {
	SubjectID  string
	AsOf       time.Time
	Confidence Confidence
}

// Resolved reports whether a subject was determined at all.
func (r ResolvedForeground) Resolved() bool {
	return r.SubjectID != ""
}

// IsHigh reports whether the resolution is a fresh, high-confidence one.
func (r ResolvedForeground) IsHigh() bool {
	return r.Resolved() && r.Confidence == ConfidenceHigh
}

// NoResolution is returned when the foreground cannot be determined.
func NoResolution() ResolvedForeground {
	return ResolvedForeground{Confidence: ConfidenceStale}
}

// CachedForeground is the most recent high-confidence observation of a
// non-exempt subject.
type CachedForeground struct {
	SubjectID  string
	ObservedAt time.Time
}

// BlockEntry maps a subject to the instant its block ends.
type BlockEntry struct {
	SubjectID string
	UnblockAt time.Time
}

// Frame is an opaque screen capture handed to the classifier.
type Frame struct {
	Width      int
	Height     int
	Pix        []byte // RGBA, 4 bytes per pixel, row-major
	CapturedAt time.Time
}

// BlockSource records which stage of the fallback chain chose the block target.
type BlockSource string

const (
	SourceResolved BlockSource = "resolved"
	SourceCache    BlockSource = "cache"
	SourceSentinel BlockSource = "sentinel"
)

// SampleResult captures what happened during one classification cycle.
type SampleResult struct {
	SampledAt  time.Time
	Scores     []float32
	Flagged    bool
	BlockedID  string
	Source     BlockSource
	Neutralize bool // neutral-state transition was triggered directly
	Skipped    error
	DurationMs int64
}

// EnforcementResult captures what happened during one enforcement tick.
type EnforcementResult struct {
	CheckedAt   time.Time
	Foreground  ResolvedForeground
	Blocked     bool
	UnblockAt   time.Time
	Neutralized bool
}

// DaemonEntry stores the running monitor's identity for the status command.
// Persisted to a small JSON file.
type DaemonEntry struct {
	Version       int    `json:"version"`
	PID           int    `json:"pid"`
	StartedAt     int64  `json:"started_at"`
	LastHeartbeat int64  `json:"last_heartbeat"`
	AppVersion    string `json:"app_version,omitempty"`
}
