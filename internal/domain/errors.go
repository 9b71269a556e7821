package domain

import "errors"

// Every failure in the engine is recoverable by skipping the current cycle.
var (
	ErrPermissionDenied   = errors.New("permission denied")
	ErrCaptureUnavailable = errors.New("capture unavailable")
	ErrClassifierNotReady = errors.New("classifier not ready")
	ErrNoResolution       = errors.New("no resolution")
)
