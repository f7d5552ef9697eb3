// Package coordinator composes the idle classifier, the sleep guard and the
// overlay into one runtime state and publishes a status after every change.
package coordinator

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/awakeguard/pkg/idle"
	"github.com/Veraticus/awakeguard/pkg/interfaces"
	"github.com/Veraticus/awakeguard/pkg/overlay"
	"github.com/Veraticus/awakeguard/pkg/power"
	"github.com/Veraticus/awakeguard/pkg/types"
)

// DefaultHintText is shown on the overlay while it is pinned on.
const DefaultHintText = "Overlay pinned on (idle threshold 0). Use the tray menu or `awakeguard settings` to change it."

// Config holds the collaborators and initial settings of a Coordinator.
// Nil collaborators get platform or no-op defaults.
type Config struct {
	Settings     types.RuntimeSettings
	SettingsPath string
	HintText     string

	Overlay    interfaces.Overlay
	Sinks      []interfaces.StatusSink
	IdleSource interfaces.IdleSource
	Tracker    idle.WatermarkTracker
	KeepAwake  interfaces.KeepAwake
	Pulser     interfaces.InputPulser
	Dispatcher idle.Dispatcher

	ClassifierOptions []idle.Option
	GuardOptions      []power.Option

	Logger *slog.Logger
}

// Coordinator owns one classifier and one guard.
type Coordinator struct {
	mu        sync.Mutex
	publishMu sync.Mutex

	classifier *idle.Classifier
	guard      *power.Guard
	overlay    interfaces.Overlay
	sinks      []interfaces.StatusSink
	logger     *slog.Logger

	settingsPath string
	hintText     string

	settings        types.RuntimeSettings
	running         bool
	idle            bool
	overlayVisible  bool
	antiSleepActive bool
	closed          bool
}

// New validates the initial settings, builds the classifier and guard, and
// pushes the initial overlay configuration.
func New(cfg Config) (*Coordinator, error) {
	if err := cfg.Settings.Validate(); err != nil {
		return nil, err
	}

	c := &Coordinator{
		overlay:      cfg.Overlay,
		sinks:        cfg.Sinks,
		logger:       cfg.Logger,
		settingsPath: cfg.SettingsPath,
		hintText:     cfg.HintText,
		settings:     cfg.Settings,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.overlay == nil {
		c.overlay = overlay.Null{}
	}
	if c.hintText == "" {
		c.hintText = DefaultHintText
	}

	classifierOpts := []idle.Option{idle.WithLogger(c.logger)}
	if cfg.IdleSource != nil {
		classifierOpts = append(classifierOpts, idle.WithSource(cfg.IdleSource))
	}
	if cfg.Tracker != nil {
		classifierOpts = append(classifierOpts, idle.WithTracker(cfg.Tracker))
	}
	if cfg.Dispatcher != nil {
		classifierOpts = append(classifierOpts, idle.WithDispatcher(cfg.Dispatcher))
	}
	classifierOpts = append(classifierOpts, cfg.ClassifierOptions...)

	classifier, err := idle.NewClassifier(classifierThreshold(cfg.Settings, 0), c.handleTransition, classifierOpts...)
	if err != nil {
		return nil, err
	}

	guardOpts := []power.Option{
		power.WithLogger(c.logger),
		power.WithInputKeepAlive(cfg.Settings.AntiSleepInputPulse),
	}
	if cfg.KeepAwake != nil {
		guardOpts = append(guardOpts, power.WithKeepAwake(cfg.KeepAwake))
	}
	if cfg.Pulser != nil {
		guardOpts = append(guardOpts, power.WithPulser(cfg.Pulser))
	}
	guardOpts = append(guardOpts, cfg.GuardOptions...)

	guard, err := power.NewGuard(cfg.Settings.AntiSleepInterval(), cfg.Settings.SleepProtectionScope, guardOpts...)
	if err != nil {
		_ = classifier.Close()
		return nil, err
	}

	c.classifier = classifier
	c.guard = guard

	c.overlay.SetOpacity(cfg.Settings.OverlayOpacity)
	c.overlay.SetTargetMonitor(cfg.Settings.OverlayMonitor)
	c.overlay.SetHint(c.hintText, hintEnabled(cfg.Settings))
	if err := classifier.UpdateIgnoreInjectedInput(cfg.Settings.IgnoreInjectedInput); err != nil {
		c.logger.Warn("failed to apply ignore-injected-input", "error", err)
	}
	return c, nil
}

// classifierThreshold maps the settings threshold onto the classifier. A
// threshold of 0 pins the overlay on and never reaches the classifier, which
// keeps its previous threshold (at least one second).
func classifierThreshold(s types.RuntimeSettings, previous time.Duration) time.Duration {
	if s.IdleThresholdSeconds > 0 {
		return s.IdleThreshold()
	}
	if previous > 0 {
		return previous
	}
	return time.Second
}

func hintEnabled(s types.RuntimeSettings) bool {
	return s.OverlayEnabled && s.IdleThresholdSeconds == 0
}

func overlayVisible(s types.RuntimeSettings, idle bool) bool {
	return s.OverlayEnabled && (s.IdleThresholdSeconds == 0 || idle)
}

// Start brings the runtime up: guard, overlay, classifier, then one status.
func (c *Coordinator) Start() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return types.ErrClosed
	}
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.idle = false
	c.overlayVisible = overlayVisible(c.settings, false)
	c.antiSleepActive = c.settings.AntiSleepEnabled
	show := c.overlayVisible
	enable := c.antiSleepActive
	c.mu.Unlock()

	if err := c.guard.Start(); err != nil {
		c.logger.Warn("failed to start sleep guard", "error", err)
	}
	if enable {
		if err := c.guard.Enable(); err != nil {
			c.logger.Warn("failed to enable sleep guard", "error", err)
		}
	}
	if show {
		c.overlay.Show()
	}
	if err := c.classifier.Start(); err != nil {
		c.logger.Warn("failed to start idle classifier", "error", err)
	}

	c.logger.Info("runtime started", "overlay_visible", show, "anti_sleep", enable)
	c.publish()
	return nil
}

// Stop is the inverse of Start. It is a no-op when not running.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	hide := c.overlayVisible
	disable := c.antiSleepActive
	c.running = false
	c.idle = false
	c.overlayVisible = false
	c.antiSleepActive = false
	c.mu.Unlock()

	c.stopCollaborators(hide, disable)
	c.logger.Info("runtime stopped")
	c.publish()
}

func (c *Coordinator) stopCollaborators(hide, disable bool) {
	c.classifier.Stop()
	if disable {
		c.guard.Disable()
	}
	c.guard.Stop()
	if hide {
		c.overlay.Hide()
	}
}

// UpdateSettings replaces the settings snapshot and applies only what
// changed: at most one show or hide and one enable or disable.
func (c *Coordinator) UpdateSettings(next types.RuntimeSettings) error {
	if err := next.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return types.ErrClosed
	}
	prev := c.settings
	c.settings = next
	running := c.running

	wasVisible := c.overlayVisible
	wasActive := c.antiSleepActive
	if running {
		c.overlayVisible = overlayVisible(next, c.idle)
		c.antiSleepActive = next.AntiSleepEnabled
	}
	nowVisible := c.overlayVisible
	nowActive := c.antiSleepActive
	c.mu.Unlock()

	if next.OverlayMonitor != prev.OverlayMonitor {
		c.overlay.SetTargetMonitor(next.OverlayMonitor)
	}
	if hintEnabled(next) != hintEnabled(prev) {
		c.overlay.SetHint(c.hintText, hintEnabled(next))
	}
	if next.IdleThresholdSeconds != prev.IdleThresholdSeconds && next.IdleThresholdSeconds > 0 {
		if err := c.classifier.UpdateIdleThreshold(next.IdleThreshold()); err != nil {
			c.logger.Warn("failed to update idle threshold", "error", err)
		}
	}
	if next.IgnoreInjectedInput != prev.IgnoreInjectedInput {
		if err := c.classifier.UpdateIgnoreInjectedInput(next.IgnoreInjectedInput); err != nil {
			c.logger.Warn("failed to update ignore-injected-input", "error", err)
		}
	}
	if next.AntiSleepIntervalSeconds != prev.AntiSleepIntervalSeconds || next.SleepProtectionScope != prev.SleepProtectionScope {
		if err := c.guard.UpdateConfiguration(next.AntiSleepInterval(), next.SleepProtectionScope); err != nil {
			c.logger.Warn("failed to update sleep guard", "error", err)
		}
	}
	if next.AntiSleepInputPulse != prev.AntiSleepInputPulse {
		if err := c.guard.SetInputKeepAlive(next.AntiSleepInputPulse); err != nil {
			c.logger.Warn("failed to update input pulse", "error", err)
		}
	}
	if next.OverlayOpacity != prev.OverlayOpacity {
		c.overlay.SetOpacity(next.OverlayOpacity)
	}

	if running {
		switch {
		case nowVisible && !wasVisible:
			c.overlay.Show()
		case !nowVisible && wasVisible:
			c.overlay.Hide()
		}
		switch {
		case nowActive && !wasActive:
			if err := c.guard.Enable(); err != nil {
				c.logger.Warn("failed to enable sleep guard", "error", err)
			}
		case !nowActive && wasActive:
			c.guard.Disable()
		}
	}

	c.publish()
	return nil
}

func (c *Coordinator) handleTransition(ev idle.Event) {
	c.mu.Lock()
	if c.closed || !c.running {
		c.mu.Unlock()
		return
	}
	c.idle = ev.Transition == idle.IdleStarted
	was := c.overlayVisible
	c.overlayVisible = overlayVisible(c.settings, c.idle)
	now := c.overlayVisible
	c.mu.Unlock()

	c.logger.Info("idle state changed", "idle", ev.Transition == idle.IdleStarted, "elapsed", ev.Elapsed.Round(time.Second))

	switch {
	case now && !was:
		c.overlay.Show()
	case !now && was:
		c.overlay.Hide()
	}
	c.publish()
}

// Status returns the current state without side effects.
func (c *Coordinator) Status() (types.RuntimeStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return types.RuntimeStatus{}, types.ErrClosed
	}
	return c.statusLocked(), nil
}

// Settings returns the current settings snapshot.
func (c *Coordinator) Settings() types.RuntimeSettings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

func (c *Coordinator) statusLocked() types.RuntimeStatus {
	return types.RuntimeStatus{
		Timestamp:        time.Now(),
		IsIdle:           c.idle,
		OverlayEnabled:   c.settings.OverlayEnabled,
		OverlayVisible:   c.overlayVisible,
		AntiSleepEnabled: c.settings.AntiSleepEnabled,
		AntiSleepActive:  c.antiSleepActive,
		SettingsPath:     c.settingsPath,
	}
}

// publish snapshots the state and hands it to every sink. Sinks are written
// one publication at a time; failures are logged.
func (c *Coordinator) publish() {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	c.mu.Lock()
	status := c.statusLocked()
	c.mu.Unlock()

	for _, sink := range c.sinks {
		if err := sink.Write(status); err != nil {
			c.logger.Warn("status sink failed", "error", err)
		}
	}
}

// Close detaches from the classifier, stops everything and releases the
// overlay, classifier and guard in that order.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	hide := c.running && c.overlayVisible
	disable := c.running && c.antiSleepActive
	c.running = false
	c.idle = false
	c.overlayVisible = false
	c.antiSleepActive = false
	c.mu.Unlock()

	c.classifier.Detach()
	c.stopCollaborators(hide, disable)

	if closer, ok := c.overlay.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			c.logger.Warn("failed to close overlay", "error", err)
		}
	}
	if err := c.classifier.Close(); err != nil {
		c.logger.Warn("failed to close idle classifier", "error", err)
	}
	return c.guard.Close()
}
