package infra

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/content_mon/internal/domain"
)

var x11AtomNames = []string{
	"_NET_ACTIVE_WINDOW",
	"_NET_WM_PID",
	"_NET_WM_WINDOW_TYPE",
	"_NET_WM_WINDOW_TYPE_DESKTOP",
	"WM_CLASS",
}

// X11Client is a lazily connected X server handle shared by the focus and
// frame sources. A failed request drops the connection so the next call
// reconnects.
type X11Client struct {
	display string
	logger  *zap.Logger

	mu     sync.Mutex
	conn   *xgb.Conn
	screen *xproto.ScreenInfo
	atoms  map[string]xproto.Atom
}

// NewX11Client creates a client for display ("" means $DISPLAY).
func NewX11Client(display string, logger *zap.Logger) *X11Client {
	return &X11Client{
		display: display,
		logger:  logger,
	}
}

// connect returns a live connection, dialing if needed. Caller holds mu.
func (c *X11Client) connect() error {
	if c.conn != nil {
		return nil
	}

	conn, err := xgb.NewConnDisplay(c.display)
	if err != nil {
		return fmt.Errorf("%w: connect to X server: %v", domain.ErrPermissionDenied, err)
	}

	atoms := make(map[string]xproto.Atom, len(x11AtomNames))
	for _, name := range x11AtomNames {
		reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
		if err != nil {
			conn.Close()
			return fmt.Errorf("intern atom %s: %w", name, err)
		}
		atoms[name] = reply.Atom
	}

	c.conn = conn
	c.screen = xproto.Setup(conn).DefaultScreen(conn)
	c.atoms = atoms
	c.logger.Debug("connected to X server",
		zap.Uint16("width", c.screen.WidthInPixels),
		zap.Uint16("height", c.screen.HeightInPixels))
	return nil
}

// reset drops the connection after a failed request. Caller holds mu.
func (c *X11Client) reset() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Close releases the connection.
func (c *X11Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

func (c *X11Client) property(window xproto.Window, atom, atomType xproto.Atom, length uint32) ([]byte, error) {
	reply, err := xproto.GetProperty(c.conn, false, window, atom, atomType, 0, length).Reply()
	if err != nil {
		return nil, err
	}
	return reply.Value, nil
}

func (c *X11Client) activeWindow() (xproto.Window, error) {
	data, err := c.property(c.screen.Root, c.atoms["_NET_ACTIVE_WINDOW"], xproto.AtomWindow, 1)
	if err != nil {
		return 0, err
	}
	if len(data) < 4 {
		return 0, nil
	}
	return xproto.Window(binary.LittleEndian.Uint32(data)), nil
}

// windowInfo is what the focus source needs to name a window.
type windowInfo struct {
	instance string
	class    string
	pid      uint32
	desktop  bool
}

func (c *X11Client) describe(window xproto.Window) windowInfo {
	var info windowInfo

	if data, err := c.property(window, c.atoms["WM_CLASS"], xproto.AtomString, 256); err == nil {
		info.instance, info.class = parseWMClass(data)
	}
	if data, err := c.property(window, c.atoms["_NET_WM_PID"], xproto.AtomCardinal, 1); err == nil && len(data) >= 4 {
		info.pid = binary.LittleEndian.Uint32(data)
	}
	if data, err := c.property(window, c.atoms["_NET_WM_WINDOW_TYPE"], xproto.AtomAtom, 32); err == nil {
		desktop := c.atoms["_NET_WM_WINDOW_TYPE_DESKTOP"]
		for i := 0; i+4 <= len(data); i += 4 {
			if xproto.Atom(binary.LittleEndian.Uint32(data[i:])) == desktop {
				info.desktop = true
				break
			}
		}
	}
	return info
}

// parseWMClass splits a WM_CLASS value ("instance\x00class\x00").
func parseWMClass(data []byte) (instance, class string) {
	parts := strings.Split(strings.TrimRight(string(data), "\x00"), "\x00")
	if len(parts) >= 1 {
		instance = parts[0]
	}
	if len(parts) >= 2 {
		class = parts[1]
	}
	return instance, class
}
