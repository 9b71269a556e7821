package infra

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/content_mon/internal/domain"
)

// X11FocusSource implements domain.FocusSource from _NET_ACTIVE_WINDOW.
// Subjects are the lowercased WM_CLASS class, falling back to the instance
// name and then to the owning process name.
type X11FocusSource struct {
	client    *X11Client
	processes domain.ProcessLookup
	logger    *zap.Logger
}

// NewX11FocusSource creates a focus source. processes may be nil.
func NewX11FocusSource(client *X11Client, processes domain.ProcessLookup, logger *zap.Logger) *X11FocusSource {
	return &X11FocusSource{
		client:    client,
		processes: processes,
		logger:    logger,
	}
}

// ActiveSubject returns the focused subject, or "" for the desktop or no window.
func (s *X11FocusSource) ActiveSubject(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.client.mu.Lock()
	defer s.client.mu.Unlock()

	if err := s.client.connect(); err != nil {
		return "", err
	}

	window, err := s.client.activeWindow()
	if err != nil {
		s.client.reset()
		return "", err
	}
	if window == 0 || window == s.client.screen.Root {
		return "", nil
	}

	return s.subjectOf(s.client.describe(window)), nil
}

func (s *X11FocusSource) subjectOf(info windowInfo) string {
	switch {
	case info.desktop:
		return ""
	case info.class != "":
		return strings.ToLower(info.class)
	case info.instance != "":
		return strings.ToLower(info.instance)
	case info.pid != 0 && s.processes != nil:
		name, err := s.processes.NameOf(int(info.pid))
		if err != nil {
			s.logger.Debug("failed to name window owner", zap.Uint32("pid", info.pid), zap.Error(err))
			return ""
		}
		return name
	}
	return ""
}

// Ensure X11FocusSource implements domain.FocusSource.
var _ domain.FocusSource = (*X11FocusSource)(nil)
