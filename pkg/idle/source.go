// Package idle classifies the user as idle or active from the time elapsed
// since the last input, with hysteresis around a configurable threshold.
package idle

import (
	"time"

	"github.com/Veraticus/awakeguard/pkg/interfaces"
)

// NewSystemSource creates a platform-appropriate idle source.
// It returns:
// - a GetLastInputInfo source on Windows
// - an X11 MIT-SCREEN-SAVER source on Linux (unavailable without a display)
// - an ioreg HIDIdleTime source on macOS
// - an unavailable source on other platforms.
func NewSystemSource() interfaces.IdleSource {
	return newPlatformSource()
}

// SourceFunc adapts a function to interfaces.IdleSource.
type SourceFunc func() (time.Duration, bool)

// IdleElapsed calls f.
func (f SourceFunc) IdleElapsed() (time.Duration, bool) {
	return f()
}

// unavailableSource never has a reading.
type unavailableSource struct{}

func (unavailableSource) IdleElapsed() (time.Duration, bool) {
	return 0, false
}
