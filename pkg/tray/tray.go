// Package tray shows the runtime state in the system tray and forwards menu
// clicks to the application.
package tray

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/getlantern/systray"

	"github.com/Veraticus/awakeguard/pkg/interfaces"
	"github.com/Veraticus/awakeguard/pkg/types"
)

// Actions are invoked from the tray's click loop.
type Actions struct {
	ToggleOverlay   func()
	ToggleAntiSleep func()
	Quit            func()
}

// Tray is a systray menu with a status line, overlay and anti-sleep
// checkboxes and a quit entry.
type Tray struct {
	actions Actions
	logger  *slog.Logger

	mu         sync.Mutex
	ready      bool
	pending    *types.RuntimeStatus
	statusItem *systray.MenuItem
	overlay    *systray.MenuItem
	antiSleep  *systray.MenuItem
	quit       *systray.MenuItem
	done       chan struct{}
}

// New creates a tray. Nothing is shown until Run.
func New(actions Actions, logger *slog.Logger) *Tray {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tray{
		actions: actions,
		logger:  logger.With("component", "tray"),
		done:    make(chan struct{}),
	}
}

// Run shows the tray and blocks until Quit. systray requires it to be
// called from the main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit removes the tray and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("awakeguard")
	systray.SetTooltip("awakeguard")

	t.mu.Lock()
	t.statusItem = systray.AddMenuItem("Starting", "Current state")
	t.statusItem.Disable()
	systray.AddSeparator()
	t.overlay = systray.AddMenuItem("Idle overlay", "Dim the screen while idle")
	t.antiSleep = systray.AddMenuItem("Keep awake", "Prevent system sleep")
	systray.AddSeparator()
	t.quit = systray.AddMenuItem("Quit", "Stop awakeguard")
	t.ready = true
	pending := t.pending
	t.pending = nil
	t.mu.Unlock()

	if pending != nil {
		t.apply(*pending)
	}
	go t.handleClicks()
}

func (t *Tray) onExit() {
	close(t.done)
}

func (t *Tray) handleClicks() {
	for {
		select {
		case <-t.overlay.ClickedCh:
			call(t.actions.ToggleOverlay)
		case <-t.antiSleep.ClickedCh:
			call(t.actions.ToggleAntiSleep)
		case <-t.quit.ClickedCh:
			call(t.actions.Quit)
		case <-t.done:
			return
		}
	}
}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}

// Write implements interfaces.StatusSink. Statuses published before the
// tray is ready are applied once it is.
func (t *Tray) Write(status types.RuntimeStatus) error {
	t.mu.Lock()
	if !t.ready {
		t.pending = &status
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	t.apply(status)
	return nil
}

func (t *Tray) apply(status types.RuntimeStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()

	title := StatusLine(status)
	t.statusItem.SetTitle(title)
	systray.SetTooltip("awakeguard: " + title)
	setChecked(t.overlay, status.OverlayEnabled)
	setChecked(t.antiSleep, status.AntiSleepEnabled)
}

func setChecked(item *systray.MenuItem, on bool) {
	if on {
		item.Check()
	} else {
		item.Uncheck()
	}
}

// StatusLine summarizes a status for the menu and tooltip.
func StatusLine(status types.RuntimeStatus) string {
	parts := []string{"Active"}
	if status.IsIdle {
		parts[0] = "Idle"
	}
	if status.OverlayVisible {
		parts = append(parts, "overlay shown")
	}
	if status.AntiSleepActive {
		parts = append(parts, "keeping awake")
	}
	return strings.Join(parts, ", ")
}

// Ensure Tray implements StatusSink
var _ interfaces.StatusSink = (*Tray)(nil)
