//go:build !windows && !linux
// +build !windows,!linux

package power

import (
	"github.com/Veraticus/awakeguard/pkg/interfaces"
	"github.com/Veraticus/awakeguard/pkg/types"
)

type unsupportedPulser struct{}

// NewPulser returns a pulser that reports ErrUnsupported.
func NewPulser() interfaces.InputPulser {
	return unsupportedPulser{}
}

func (unsupportedPulser) Pulse() error { return types.ErrUnsupported }
