//go:build !windows
// +build !windows

package inputhook

import "github.com/Veraticus/awakeguard/pkg/types"

type unsupportedHook struct{}

// NewPlatformHook returns a hook that always fails to install, so callers
// fall back to the unfiltered OS idle source.
func NewPlatformHook() Hook {
	return unsupportedHook{}
}

func (unsupportedHook) Run(_ func(Event), installed func(error)) {
	installed(types.ErrUnsupported)
}

func (unsupportedHook) Quit() {}
