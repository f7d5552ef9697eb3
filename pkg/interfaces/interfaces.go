// Package interfaces defines the core interfaces used throughout the application.
package interfaces

import (
	"time"

	"github.com/Veraticus/awakeguard/pkg/types"
)

// IdleSource reports the time since the last user input as seen by the OS.
// The boolean is false when no reading is available.
type IdleSource interface {
	IdleElapsed() (time.Duration, bool)
}

// Overlay is the visual surface shown while the machine is idle.
type Overlay interface {
	Show()
	Hide()
	SetOpacity(opacity float64)
	SetTargetMonitor(selector string)
	SetHint(text string, enabled bool)
}

// StatusSink receives every published runtime status. Failures are
// reported but never affect runtime state.
type StatusSink interface {
	Write(status types.RuntimeStatus) error
}

// SettingsStore persists runtime settings.
type SettingsStore interface {
	Load() (types.RuntimeSettings, error)
	Save(settings types.RuntimeSettings) error
	Path() string
}

// KeepAwake is the OS sleep-prevention directive.
type KeepAwake interface {
	// Enable asserts the directive in its continuous form.
	Enable(scope types.SleepProtectionScope) error
	// Refresh re-asserts the directive for one heartbeat.
	Refresh(scope types.SleepProtectionScope) error
	// Disable clears the directive.
	Disable() error
}

// InputPulser emits a tiny synthetic input that resets OS idle timers.
type InputPulser interface {
	Pulse() error
}

// StatusReporter reports notification delivery progress.
type StatusReporter interface {
	ReportSending()
	ReportSuccess()
	ReportFailure()
}

// RateLimiter limits notification frequency.
type RateLimiter interface {
	Allow() bool
	Reset()
}
