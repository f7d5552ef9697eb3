// Package instance keeps a single awakeguard runtime per user with a PID file.
package instance

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrAlreadyRunning is returned by Acquire while another live process holds
// the PID file.
var ErrAlreadyRunning = errors.New("another instance is running")

// Lock is a held PID file.
type Lock struct {
	path string
}

// Acquire writes the current PID to path. A file left by a dead process is
// replaced.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, errors.Wrap(err, "failed to create pid directory")
	}

	for attempt := 0; attempt < 2; attempt++ {
		// #nosec G304 - the pid path comes from configuration
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(path)
				return nil, errors.Wrap(firstErr(werr, cerr), "failed to write pid file")
			}
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, errors.Wrap(err, "failed to create pid file")
		}

		pid, err := ReadPID(path)
		if err == nil && pid != os.Getpid() && processAlive(pid) {
			return nil, errors.Wrapf(ErrAlreadyRunning, "pid %d", pid)
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrap(err, "failed to remove stale pid file")
		}
	}
	return nil, errors.Errorf("pid file %s keeps reappearing", path)
}

// Path returns the PID file location.
func (l *Lock) Path() string {
	return l.path
}

// Release removes the PID file if it still names this process.
func (l *Lock) Release() error {
	pid, err := ReadPID(l.path)
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return nil
		}
		return err
	}
	if pid != os.Getpid() {
		return nil
	}
	return errors.Wrap(os.Remove(l.path), "failed to remove pid file")
}

// ReadPID returns the PID stored at path.
func ReadPID(path string) (int, error) {
	// #nosec G304 - the pid path comes from configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, errors.Errorf("pid file %s is corrupt", path)
	}
	return pid, nil
}

// Running reports whether the PID file at path names a live process.
func Running(path string) (int, bool) {
	pid, err := ReadPID(path)
	if err != nil {
		return 0, false
	}
	return pid, processAlive(pid)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
