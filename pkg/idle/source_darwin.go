//go:build darwin
// +build darwin

package idle

import "github.com/Veraticus/awakeguard/pkg/interfaces"

func newPlatformSource() interfaces.IdleSource {
	return newIoregSource()
}
