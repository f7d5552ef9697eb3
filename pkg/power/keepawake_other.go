//go:build !windows && !linux
// +build !windows,!linux

package power

import (
	"github.com/Veraticus/awakeguard/pkg/interfaces"
	"github.com/Veraticus/awakeguard/pkg/types"
)

type unsupportedKeepAwake struct{}

// NewKeepAwake returns a primitive that reports ErrUnsupported.
func NewKeepAwake() interfaces.KeepAwake {
	return unsupportedKeepAwake{}
}

func (unsupportedKeepAwake) Enable(types.SleepProtectionScope) error  { return types.ErrUnsupported }
func (unsupportedKeepAwake) Refresh(types.SleepProtectionScope) error { return types.ErrUnsupported }
func (unsupportedKeepAwake) Disable() error                           { return nil }
