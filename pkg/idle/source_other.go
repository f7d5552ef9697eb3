//go:build !linux && !darwin && !windows
// +build !linux,!darwin,!windows

package idle

import "github.com/Veraticus/awakeguard/pkg/interfaces"

func newPlatformSource() interfaces.IdleSource {
	return unavailableSource{}
}
