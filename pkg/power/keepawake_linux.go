//go:build linux
// +build linux

package power

import (
	"io"
	"os"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/pkg/errors"

	"github.com/Veraticus/awakeguard/pkg/interfaces"
	"github.com/Veraticus/awakeguard/pkg/types"
)

const (
	logindDest   = "org.freedesktop.login1"
	logindPath   = dbus.ObjectPath("/org/freedesktop/login1")
	logindMethod = "org.freedesktop.login1.Manager.Inhibit"

	inhibitWho = "awakeguard"
	inhibitWhy = "Anti-sleep is enabled"
)

// logindInhibitor holds a logind "block" inhibitor lock. The lock lives as
// long as the returned file descriptor stays open.
type logindInhibitor struct {
	mu      sync.Mutex
	inhibit func(what string) (io.Closer, error)
	lock    io.Closer
	what    string
}

// NewKeepAwake returns the logind inhibitor primitive.
func NewKeepAwake() interfaces.KeepAwake {
	return &logindInhibitor{inhibit: logindInhibit}
}

func logindInhibit(what string) (io.Closer, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to system bus")
	}

	var fd dbus.UnixFD
	call := conn.Object(logindDest, logindPath).Call(logindMethod, 0, what, inhibitWho, inhibitWhy, "block")
	if err := call.Store(&fd); err != nil {
		return nil, errors.Wrapf(err, "logind Inhibit(%s)", what)
	}
	return os.NewFile(uintptr(fd), "logind-inhibit"), nil
}

func inhibitWhat(scope types.SleepProtectionScope) string {
	if scope == types.ScopeSystemAndDisplay {
		return "sleep:idle"
	}
	return "sleep"
}

// Enable takes the inhibitor lock for scope, replacing a lock of another scope.
func (l *logindInhibitor) Enable(scope types.SleepProtectionScope) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	what := inhibitWhat(scope)
	if l.lock != nil && l.what == what {
		return nil
	}

	lock, err := l.inhibit(what)
	if err != nil {
		return err
	}
	l.releaseLocked()
	l.lock = lock
	l.what = what
	return nil
}

// Refresh re-takes the lock if it was lost; logind locks need no renewal.
func (l *logindInhibitor) Refresh(scope types.SleepProtectionScope) error {
	return l.Enable(scope)
}

// Disable releases the lock.
func (l *logindInhibitor) Disable() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.releaseLocked()
}

func (l *logindInhibitor) releaseLocked() error {
	if l.lock == nil {
		return nil
	}
	err := l.lock.Close()
	l.lock = nil
	l.what = ""
	return errors.Wrap(err, "failed to release inhibitor lock")
}
