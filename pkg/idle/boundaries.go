package idle

import "time"

// Default classifier timing.
const (
	DefaultPollInterval      = time.Second
	DefaultDebounceTolerance = 2 * time.Second
)

// Boundaries returns the hysteresis band around threshold. The tolerance is
// clamped to half the threshold so that 0 <= stop <= threshold <= start.
func Boundaries(threshold, tolerance time.Duration) (start, stop time.Duration) {
	if threshold < 0 {
		threshold = 0
	}
	effective := tolerance
	if effective < 0 {
		effective = 0
	}
	if half := threshold / 2; effective > half {
		effective = half
	}

	start = threshold + effective
	stop = threshold - effective
	if stop < 0 {
		stop = 0
	}
	return start, stop
}
