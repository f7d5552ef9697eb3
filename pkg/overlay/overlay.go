// Package overlay provides headless implementations of the idle overlay.
package overlay

import (
	"log/slog"
	"math"
	"strings"
	"sync"
)

// Null ignores every call.
type Null struct{}

func (Null) Show()                   {}
func (Null) Hide()                   {}
func (Null) SetOpacity(float64)      {}
func (Null) SetTargetMonitor(string) {}
func (Null) SetHint(string, bool)    {}

// State is what a Logging overlay would currently render.
type State struct {
	Visible     bool
	Opacity     float64
	Monitors    Selection
	Hint        string
	HintEnabled bool
}

// Logging records overlay state and logs each change. It stands in for a
// rendering surface on machines without one.
type Logging struct {
	mu     sync.Mutex
	state  State
	logger *slog.Logger
}

// NewLogging creates a hidden logging overlay.
func NewLogging(logger *slog.Logger) *Logging {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logging{logger: logger.With("component", "overlay")}
}

// Show marks the overlay visible.
func (l *Logging) Show() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Visible = true
	l.logger.Info("overlay shown", "opacity", l.state.Opacity, "monitors", l.state.Monitors.String())
}

// Hide marks the overlay hidden.
func (l *Logging) Hide() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Visible = false
	l.logger.Info("overlay hidden")
}

// SetOpacity clamps opacity to 0..1. NaN is ignored.
func (l *Logging) SetOpacity(opacity float64) {
	if math.IsNaN(opacity) {
		return
	}
	if opacity < 0 {
		opacity = 0
	}
	if opacity > 1 {
		opacity = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Opacity = opacity
	l.logger.Debug("overlay opacity", "opacity", opacity)
}

// SetTargetMonitor parses and stores the monitor selector.
func (l *Logging) SetTargetMonitor(selector string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Monitors = ParseMonitorSelector(selector)
	l.logger.Debug("overlay monitors", "monitors", l.state.Monitors.String())
}

// SetHint stores the hint text and whether it is shown.
func (l *Logging) SetHint(text string, enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Hint = text
	l.state.HintEnabled = enabled
}

// State returns a copy of the current state.
func (l *Logging) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.state
	s.Monitors.Devices = append([]string(nil), l.state.Monitors.Devices...)
	return s
}

// Selection is a parsed monitor selector.
type Selection struct {
	All     bool
	Devices []string
}

// Primary reports whether only the primary monitor is selected.
func (s Selection) Primary() bool {
	return !s.All && len(s.Devices) == 0
}

func (s Selection) String() string {
	switch {
	case s.All:
		return "all"
	case len(s.Devices) == 0:
		return "primary"
	default:
		return strings.Join(s.Devices, ";")
	}
}

// ParseMonitorSelector parses "" (primary), "*" (all) or a ';'-separated
// list of device names. Empty entries and duplicates are dropped.
func ParseMonitorSelector(selector string) Selection {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return Selection{}
	}
	if selector == "*" {
		return Selection{All: true}
	}

	var sel Selection
	seen := make(map[string]bool)
	for _, part := range strings.Split(selector, ";") {
		name := strings.TrimSpace(part)
		if name == "" || seen[strings.ToLower(name)] {
			continue
		}
		if name == "*" {
			return Selection{All: true}
		}
		seen[strings.ToLower(name)] = true
		sel.Devices = append(sel.Devices, name)
	}
	return sel
}
