package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/jezek/xgb/xproto"

	"github.com/eliteGoblin/focusd/content_mon/internal/domain"
)

// X11FrameSource implements domain.FrameSource by reading the root window.
type X11FrameSource struct {
	client *X11Client
	now    func() time.Time
}

// NewX11FrameSource creates a frame source over client.
func NewX11FrameSource(client *X11Client) *X11FrameSource {
	return &X11FrameSource{
		client: client,
		now:    time.Now,
	}
}

// CaptureLatestFrame grabs the whole root window as RGBA.
func (s *X11FrameSource) CaptureLatestFrame(ctx context.Context) (*domain.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.client.mu.Lock()
	defer s.client.mu.Unlock()

	if err := s.client.connect(); err != nil {
		return nil, err
	}

	screen := s.client.screen
	width, height := int(screen.WidthInPixels), int(screen.HeightInPixels)
	if width == 0 || height == 0 {
		return nil, nil
	}

	reply, err := xproto.GetImage(s.client.conn, xproto.ImageFormatZPixmap, xproto.Drawable(screen.Root),
		0, 0, uint16(width), uint16(height), 0xffffffff).Reply()
	if err != nil {
		s.client.reset()
		return nil, fmt.Errorf("%w: get image: %v", domain.ErrCaptureUnavailable, err)
	}
	if reply.Depth != 24 && reply.Depth != 32 {
		return nil, fmt.Errorf("%w: unsupported depth %d", domain.ErrCaptureUnavailable, reply.Depth)
	}

	pix, err := bgrxToRGBA(reply.Data, width, height)
	if err != nil {
		return nil, err
	}

	return &domain.Frame{
		Width:      width,
		Height:     height,
		Pix:        pix,
		CapturedAt: s.now(),
	}, nil
}

// bgrxToRGBA converts 32bpp little-endian ZPixmap data into opaque RGBA.
func bgrxToRGBA(data []byte, width, height int) ([]byte, error) {
	n := width * height * 4
	if len(data) < n {
		return nil, fmt.Errorf("%w: short image: got %d bytes, want %d", domain.ErrCaptureUnavailable, len(data), n)
	}
	pix := make([]byte, n)
	for i := 0; i < n; i += 4 {
		pix[i] = data[i+2]
		pix[i+1] = data[i+1]
		pix[i+2] = data[i]
		pix[i+3] = 0xff
	}
	return pix, nil
}

// Ensure X11FrameSource implements domain.FrameSource.
var _ domain.FrameSource = (*X11FrameSource)(nil)
