//go:build linux
// +build linux

package power

import (
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/jezek/xgb/xtest"
	"github.com/pkg/errors"

	"github.com/Veraticus/awakeguard/pkg/interfaces"
	"github.com/Veraticus/awakeguard/pkg/types"
)

// xtestRelative is the FakeInput detail value for relative motion.
const xtestRelative = 1

// xtestPulser moves the pointer by one pixel and back through XTEST.
type xtestPulser struct {
	mu   sync.Mutex
	conn *xgb.Conn
	root xproto.Window
}

// NewPulser returns the XTEST pulser. Without an X display every pulse
// reports ErrUnsupported.
func NewPulser() interfaces.InputPulser {
	return &xtestPulser{}
}

func (p *xtestPulser) Pulse() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		if err := p.connect(); err != nil {
			return err
		}
	}

	for _, dx := range []int16{1, -1} {
		err := xtest.FakeInputChecked(p.conn, xproto.MotionNotify, xtestRelative, 0, p.root, dx, 0, 0).Check()
		if err != nil {
			p.conn.Close()
			p.conn = nil
			return errors.Wrap(err, "xtest FakeInput")
		}
	}
	return nil
}

func (p *xtestPulser) connect() error {
	conn, err := xgb.NewConn()
	if err != nil {
		return errors.Wrap(types.ErrUnsupported, err.Error())
	}
	if err := xtest.Init(conn); err != nil {
		conn.Close()
		return errors.Wrap(types.ErrUnsupported, "XTEST extension missing")
	}

	p.conn = conn
	p.root = xproto.Setup(conn).DefaultScreen(conn).Root
	return nil
}
