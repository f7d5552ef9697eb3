//go:build linux
// +build linux

package idle

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/screensaver"
	"github.com/jezek/xgb/xproto"
	"github.com/pkg/errors"

	"github.com/Veraticus/awakeguard/pkg/interfaces"
)

// x11Source reads MsSinceUserInput from the MIT-SCREEN-SAVER extension.
// The connection is opened lazily and reopened after a failed query.
type x11Source struct {
	mu   sync.Mutex
	conn *xgb.Conn
	root xproto.Window
}

func newPlatformSource() interfaces.IdleSource {
	if os.Getenv("DISPLAY") == "" {
		slog.Debug("no X display, idle source unavailable")
		return unavailableSource{}
	}
	return &x11Source{}
}

func (s *x11Source) IdleElapsed() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		if err := s.connect(); err != nil {
			slog.Debug("x11 idle source unavailable", "error", err)
			return 0, false
		}
	}

	reply, err := screensaver.QueryInfo(s.conn, xproto.Drawable(s.root)).Reply()
	if err != nil {
		slog.Debug("screensaver query failed", "error", err)
		s.conn.Close()
		s.conn = nil
		return 0, false
	}
	return time.Duration(reply.MsSinceUserInput) * time.Millisecond, true
}

func (s *x11Source) connect() error {
	conn, err := xgb.NewConn()
	if err != nil {
		return errors.Wrap(err, "failed to connect to X server")
	}
	if err := screensaver.Init(conn); err != nil {
		conn.Close()
		return errors.Wrap(err, "MIT-SCREEN-SAVER extension missing")
	}

	s.conn = conn
	s.root = xproto.Setup(conn).DefaultScreen(conn).Root
	return nil
}
