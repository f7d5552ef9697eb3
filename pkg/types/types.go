// Package types contains shared data structures used across the application.
package types

import (
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Sentinel errors shared by every component. Callers match them with errors.Is.
var (
	// ErrClosed is returned by operations on a component that has been closed.
	ErrClosed = errors.New("component is closed")

	// ErrInvalidConfiguration marks a rejected threshold, interval, scope or opacity.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrUnsupported is returned by OS primitives that do not exist on this platform.
	ErrUnsupported = errors.New("not supported on this platform")
)

// SleepProtectionScope selects what the sleep guard keeps awake.
type SleepProtectionScope int

const (
	// ScopeSystemOnly keeps the machine from sleeping but lets the display turn off.
	ScopeSystemOnly SleepProtectionScope = iota
	// ScopeSystemAndDisplay also keeps the display on.
	ScopeSystemAndDisplay
)

// Valid reports whether s is a known scope.
func (s SleepProtectionScope) Valid() bool {
	return s == ScopeSystemOnly || s == ScopeSystemAndDisplay
}

// String returns the text form used in settings files.
func (s SleepProtectionScope) String() string {
	switch s {
	case ScopeSystemOnly:
		return "system"
	case ScopeSystemAndDisplay:
		return "system_and_display"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s SleepProtectionScope) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "sleep protection scope %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown names decode to
// an invalid scope so that settings resolution can replace it with the default.
func (s *SleepProtectionScope) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "system", "system_only", "systemonly", "0":
		*s = ScopeSystemOnly
	case "system_and_display", "systemanddisplay", "display", "1":
		*s = ScopeSystemAndDisplay
	default:
		*s = SleepProtectionScope(-1)
	}
	return nil
}

// ParseScope converts a text name into a scope.
func ParseScope(name string) (SleepProtectionScope, error) {
	var s SleepProtectionScope
	_ = s.UnmarshalText([]byte(name))
	if !s.Valid() {
		return ScopeSystemOnly, errors.Wrapf(ErrInvalidConfiguration, "unknown sleep protection scope %q", name)
	}
	return s, nil
}

// Settings defaults.
const (
	CurrentSchemaVersion            = 1
	DefaultIdleThresholdSeconds     = 300
	DefaultOverlayOpacity           = 0.85
	DefaultAntiSleepIntervalSeconds = 55

	// MaxIdleThresholdSeconds caps the threshold at one week.
	MaxIdleThresholdSeconds     = 7 * 24 * 60 * 60
	// MaxAntiSleepIntervalSeconds caps the heartbeat at one day.
	MaxAntiSleepIntervalSeconds = 24 * 60 * 60
)

// RuntimeSettings is an immutable snapshot of user settings. It is passed by
// value; a change is a new snapshot.
type RuntimeSettings struct {
	SchemaVersion            int                  `yaml:"schema_version" toml:"schema_version" json:"schemaVersion"`
	IdleThresholdSeconds     int                  `yaml:"idle_threshold_seconds" toml:"idle_threshold_seconds" json:"idleThresholdSeconds"`
	OverlayEnabled           bool                 `yaml:"overlay_enabled" toml:"overlay_enabled" json:"overlayEnabled"`
	OverlayOpacity           float64              `yaml:"overlay_opacity" toml:"overlay_opacity" json:"overlayOpacity"`
	OverlayMonitor           string               `yaml:"overlay_monitor" toml:"overlay_monitor" json:"overlayMonitor"`
	AntiSleepEnabled         bool                 `yaml:"anti_sleep_enabled" toml:"anti_sleep_enabled" json:"antiSleepEnabled"`
	AntiSleepIntervalSeconds int                  `yaml:"anti_sleep_interval_seconds" toml:"anti_sleep_interval_seconds" json:"antiSleepIntervalSeconds"`
	AntiSleepInputPulse      bool                 `yaml:"anti_sleep_input_pulse" toml:"anti_sleep_input_pulse" json:"antiSleepInputPulse"`
	SleepProtectionScope     SleepProtectionScope `yaml:"sleep_protection_scope" toml:"sleep_protection_scope" json:"sleepProtectionScope"`
	IgnoreInjectedInput      bool                 `yaml:"ignore_injected_input" toml:"ignore_injected_input" json:"ignoreInjectedInput"`
}

// DefaultSettings returns the settings used on first run.
func DefaultSettings() RuntimeSettings {
	return RuntimeSettings{
		SchemaVersion:            CurrentSchemaVersion,
		IdleThresholdSeconds:     DefaultIdleThresholdSeconds,
		OverlayEnabled:           true,
		OverlayOpacity:           DefaultOverlayOpacity,
		AntiSleepIntervalSeconds: DefaultAntiSleepIntervalSeconds,
		SleepProtectionScope:     ScopeSystemOnly,
	}
}

// Validate returns an error wrapping ErrInvalidConfiguration if any field is
// out of range.
func (s RuntimeSettings) Validate() error {
	if s.IdleThresholdSeconds < 0 || s.IdleThresholdSeconds > MaxIdleThresholdSeconds {
		return errors.Wrapf(ErrInvalidConfiguration, "idle threshold %ds outside 0..%d", s.IdleThresholdSeconds, MaxIdleThresholdSeconds)
	}
	if s.AntiSleepIntervalSeconds <= 0 || s.AntiSleepIntervalSeconds > MaxAntiSleepIntervalSeconds {
		return errors.Wrapf(ErrInvalidConfiguration, "anti-sleep interval %ds outside 1..%d", s.AntiSleepIntervalSeconds, MaxAntiSleepIntervalSeconds)
	}
	if !s.SleepProtectionScope.Valid() {
		return errors.Wrapf(ErrInvalidConfiguration, "sleep protection scope %d", int(s.SleepProtectionScope))
	}
	if !ValidOpacity(s.OverlayOpacity) {
		return errors.Wrapf(ErrInvalidConfiguration, "overlay opacity %v outside 0..1", s.OverlayOpacity)
	}
	return nil
}

// ValidOpacity reports whether o is a number within 0..1.
func ValidOpacity(o float64) bool {
	return !math.IsNaN(o) && o >= 0 && o <= 1
}

// IdleThreshold returns the threshold as a duration.
func (s RuntimeSettings) IdleThreshold() time.Duration {
	return time.Duration(s.IdleThresholdSeconds) * time.Second
}

// AntiSleepInterval returns the heartbeat interval as a duration.
func (s RuntimeSettings) AntiSleepInterval() time.Duration {
	return time.Duration(s.AntiSleepIntervalSeconds) * time.Second
}

// RuntimeStatus is a point-in-time view of the coordinator state.
type RuntimeStatus struct {
	Timestamp        time.Time `json:"timestamp"`
	IsIdle           bool      `json:"isIdle"`
	OverlayEnabled   bool      `json:"overlayEnabled"`
	OverlayVisible   bool      `json:"overlayVisible"`
	AntiSleepEnabled bool      `json:"antiSleepEnabled"`
	AntiSleepActive  bool      `json:"antiSleepActive"`
	SettingsPath     string    `json:"settingsPath,omitempty"`
}

// Notification represents a notification to be sent
type Notification struct {
	Title   string
	Message string
	Time    time.Time
	Tag     string
}
