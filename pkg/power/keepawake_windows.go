//go:build windows
// +build windows

package power

import (
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"

	"github.com/Veraticus/awakeguard/pkg/interfaces"
	"github.com/Veraticus/awakeguard/pkg/types"
)

var (
	kernel32                    = windows.NewLazySystemDLL("kernel32.dll")
	procSetThreadExecutionState = kernel32.NewProc("SetThreadExecutionState")
)

const (
	esSystemRequired  = 0x00000001
	esDisplayRequired = 0x00000002
	esContinuous      = 0x80000000
)

// executionState issues SetThreadExecutionState. The continuous state is
// attached to the calling thread, so every call runs on one locked worker
// goroutine; a clear from any other thread would not undo it.
type executionState struct {
	once sync.Once
	reqs chan func()
}

// NewKeepAwake returns the SetThreadExecutionState primitive.
func NewKeepAwake() interfaces.KeepAwake {
	return &executionState{reqs: make(chan func())}
}

func (e *executionState) worker() {
	runtime.LockOSThread()
	for fn := range e.reqs {
		fn()
	}
}

func (e *executionState) set(flags uint32) error {
	e.once.Do(func() { go e.worker() })

	result := make(chan error, 1)
	e.reqs <- func() {
		prev, _, err := procSetThreadExecutionState.Call(uintptr(flags))
		if prev == 0 {
			result <- errors.Wrapf(err, "SetThreadExecutionState(%#x)", flags)
			return
		}
		result <- nil
	}
	return <-result
}

func scopeFlags(scope types.SleepProtectionScope) uint32 {
	flags := uint32(esSystemRequired)
	if scope == types.ScopeSystemAndDisplay {
		flags |= esDisplayRequired
	}
	return flags
}

func (e *executionState) Enable(scope types.SleepProtectionScope) error {
	return e.set(esContinuous | scopeFlags(scope))
}

func (e *executionState) Refresh(scope types.SleepProtectionScope) error {
	return e.set(scopeFlags(scope))
}

func (e *executionState) Disable() error {
	return e.set(esContinuous)
}
