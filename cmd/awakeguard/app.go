package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"

	"github.com/Veraticus/awakeguard/pkg/config"
	"github.com/Veraticus/awakeguard/pkg/coordinator"
	"github.com/Veraticus/awakeguard/pkg/idle"
	"github.com/Veraticus/awakeguard/pkg/interfaces"
	"github.com/Veraticus/awakeguard/pkg/notification"
	"github.com/Veraticus/awakeguard/pkg/overlay"
	"github.com/Veraticus/awakeguard/pkg/settings"
	"github.com/Veraticus/awakeguard/pkg/status"
	"github.com/Veraticus/awakeguard/pkg/tray"
	"github.com/Veraticus/awakeguard/pkg/types"
)

const indicatorRefresh = 2 * time.Second

// Platform holds the OS-facing collaborators. Nil fields get the platform
// defaults.
type Platform struct {
	Overlay    interfaces.Overlay
	IdleSource interfaces.IdleSource
	Tracker    idle.WatermarkTracker
	KeepAwake  interfaces.KeepAwake
	Pulser     interfaces.InputPulser

	// Output receives toggle notices. Defaults to stdout.
	Output io.Writer
	// Terminal receives the status line. Defaults to stderr when it is a
	// terminal.
	Terminal io.Writer
}

// Dependencies holds all the dependencies for the application
type Dependencies struct {
	Config              *config.Config
	Logger              *slog.Logger
	Store               interfaces.SettingsStore
	Coordinator         *coordinator.Coordinator
	Dispatcher          *idle.SerialDispatcher
	StatusIndicator     *status.Indicator
	StatusReporter      *status.Reporter
	StatusFile          *status.FileWriter
	History             *status.History
	Notifier            notification.Notifier
	RateLimiter         interfaces.RateLimiter
	NotificationManager *notification.Manager
	Feedback            *notification.ToggleFeedback
	Tray                *tray.Tray

	app       *Application
	stopChan  chan struct{}
	closeOnce sync.Once
}

// NewDependencies creates all dependencies with the given configuration
func NewDependencies(cfg *config.Config, platform Platform, logger *slog.Logger) (*Dependencies, error) {
	if logger == nil {
		logger = slog.Default()
	}
	deps := &Dependencies{
		Config:   cfg,
		Logger:   logger,
		stopChan: make(chan struct{}),
	}
	// Tray actions need the application, so it is created with the
	// dependencies.
	deps.app = &Application{deps: deps}

	store := settings.NewStore(cfg.SettingsPath, logger)
	deps.Store = store
	initial, err := store.Load()
	if err != nil {
		logger.Warn("using default settings", "error", err)
	}

	// Status line on the terminal
	terminal := platform.Terminal
	statusEnabled := terminal != nil
	if terminal == nil {
		terminal = os.Stderr
		fd := os.Stderr.Fd()
		statusEnabled = (isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)) && !cfg.Quiet
	}
	deps.StatusIndicator = status.NewIndicator(terminal, statusEnabled)
	deps.StatusReporter = status.NewReporter(deps.StatusIndicator, logger)
	deps.StatusIndicator.StartAutoRefresh(indicatorRefresh, deps.stopChan)

	sinks := []interfaces.StatusSink{deps.StatusIndicator}
	if cfg.StatusPath != "" {
		deps.StatusFile = status.NewFileWriter(cfg.StatusPath)
		sinks = append(sinks, deps.StatusFile)
	}
	if cfg.HistoryPath != "" {
		history, err := status.OpenHistory(cfg.HistoryPath)
		if err != nil {
			logger.Warn("status history disabled", "path", cfg.HistoryPath, "error", err)
		} else {
			deps.History = history
			sinks = append(sinks, history)
		}
	}
	if cfg.Tray {
		deps.Tray = tray.New(tray.Actions{
			ToggleOverlay:   deps.app.toggleOverlayLogged,
			ToggleAntiSleep: deps.app.toggleAntiSleepLogged,
			Quit:            deps.app.Quit,
		}, logger)
		sinks = append(sinks, deps.Tray)
	}

	// Toggle feedback
	if !cfg.Quiet {
		output := platform.Output
		if output == nil {
			output = os.Stdout
		}
		notifiers := notification.MultiNotifier{notification.NewWriterNotifier(output)}
		if cfg.NtfyTopic != "" {
			notifiers = append(notifiers, notification.NewNtfyClient(cfg.NtfyServer, cfg.NtfyTopic))
		}
		deps.Notifier = notifiers
		if cfg.RateLimit.MaxMessages > 0 && cfg.RateLimit.Window > 0 {
			deps.RateLimiter = notification.NewTokenBucket(cfg.RateLimit.MaxMessages, cfg.RateLimit.Window)
		}
		deps.NotificationManager = notification.NewManager(deps.Notifier, deps.RateLimiter, logger)
		if cfg.NtfyTopic != "" {
			deps.NotificationManager.SetStatusReporter(deps.StatusReporter)
		}
		deps.Feedback = notification.NewToggleFeedback(deps.NotificationManager, logger)
	}

	ov := platform.Overlay
	if ov == nil {
		ov = overlay.NewLogging(logger)
	}

	// Transitions are delivered off the polling goroutine
	deps.Dispatcher = idle.NewSerialDispatcher(8)

	coord, err := coordinator.New(coordinator.Config{
		Settings:     initial,
		SettingsPath: store.Path(),
		HintText:     cfg.HintText,
		Overlay:      ov,
		Sinks:        sinks,
		IdleSource:   platform.IdleSource,
		Tracker:      platform.Tracker,
		KeepAwake:    platform.KeepAwake,
		Pulser:       platform.Pulser,
		Dispatcher:   deps.Dispatcher,
		ClassifierOptions: []idle.Option{
			idle.WithPollInterval(cfg.PollInterval),
			idle.WithDebounceTolerance(cfg.DebounceTolerance),
		},
		Logger: logger,
	})
	if err != nil {
		deps.Close()
		return nil, errors.Wrap(err, "failed to create coordinator")
	}
	deps.Coordinator = coord

	return deps, nil
}

// Close cleans up all dependencies. It is safe to call more than once.
func (d *Dependencies) Close() {
	d.closeOnce.Do(func() {
		close(d.stopChan)

		if d.Coordinator != nil {
			if err := d.Coordinator.Close(); err != nil {
				d.Logger.Warn("failed to close coordinator", "error", err)
			}
		}
		if d.Dispatcher != nil {
			d.Dispatcher.Close()
		}
		if d.History != nil {
			if err := d.History.Close(); err != nil {
				d.Logger.Warn("failed to close status history", "error", err)
			}
		}
		if d.StatusIndicator != nil {
			_ = d.StatusIndicator.Clear() // Best effort
		}
	})
}

// Application represents the main application
type Application struct {
	deps *Dependencies

	mu     sync.Mutex
	cancel context.CancelFunc

	// settingsMu serializes read-modify-write of the settings snapshot.
	settingsMu sync.Mutex
}

// NewApplication creates a new application with the given dependencies
func NewApplication(deps *Dependencies) *Application {
	return deps.app
}

// Run starts the coordinator and blocks until ctx is done or Quit is
// called. With a tray, Run must be called from the main goroutine.
func (a *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()

	if err := a.deps.Coordinator.Start(); err != nil {
		return errors.Wrap(err, "failed to start")
	}
	a.deps.Logger.Info("awakeguard running", "settings", a.deps.Store.Path())

	if a.deps.Tray != nil {
		go func() {
			<-ctx.Done()
			a.deps.Tray.Quit()
		}()
		a.deps.Tray.Run()
		cancel()
	} else {
		<-ctx.Done()
	}

	a.Stop()
	return nil
}

// Quit makes Run return.
func (a *Application) Quit() {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Stop halts the runtime. The overlay is hidden and the keep-awake
// directive cleared.
func (a *Application) Stop() {
	a.deps.Coordinator.Stop()
}

// UpdateSettings applies next, persists it and announces toggled features.
// Invalid settings are rejected without touching the runtime or the file.
func (a *Application) UpdateSettings(next types.RuntimeSettings) error {
	a.settingsMu.Lock()
	defer a.settingsMu.Unlock()
	return a.updateLocked(next, true)
}

// ToggleOverlay flips the overlay setting.
func (a *Application) ToggleOverlay() error {
	a.settingsMu.Lock()
	defer a.settingsMu.Unlock()
	s := a.deps.Coordinator.Settings()
	s.OverlayEnabled = !s.OverlayEnabled
	return a.updateLocked(s, true)
}

// ToggleAntiSleep flips the anti-sleep setting.
func (a *Application) ToggleAntiSleep() error {
	a.settingsMu.Lock()
	defer a.settingsMu.Unlock()
	s := a.deps.Coordinator.Settings()
	s.AntiSleepEnabled = !s.AntiSleepEnabled
	return a.updateLocked(s, true)
}

// Reload re-reads the settings file and applies it. Feedback is announced
// for toggles made by another process.
func (a *Application) Reload() error {
	a.settingsMu.Lock()
	defer a.settingsMu.Unlock()
	next, err := a.deps.Store.Load()
	if err != nil {
		return err
	}
	if err := a.updateLocked(next, false); err != nil {
		return err
	}
	a.deps.Logger.Info("settings reloaded", "path", a.deps.Store.Path())
	return nil
}

// updateLocked must be called with settingsMu held so that prev is the
// snapshot next replaces.
func (a *Application) updateLocked(next types.RuntimeSettings, persist bool) error {
	prev := a.deps.Coordinator.Settings()
	if err := a.deps.Coordinator.UpdateSettings(next); err != nil {
		return err
	}
	if persist {
		if err := a.deps.Store.Save(next); err != nil {
			a.deps.Logger.Warn("failed to persist settings", "error", err)
		}
	}
	if a.deps.Feedback != nil {
		a.deps.Feedback.Changed(prev, next)
	}
	return nil
}

func (a *Application) toggleOverlayLogged() {
	if err := a.ToggleOverlay(); err != nil {
		a.deps.Logger.Warn("failed to toggle overlay", "error", err)
	}
}

func (a *Application) toggleAntiSleepLogged() {
	if err := a.ToggleAntiSleep(); err != nil {
		a.deps.Logger.Warn("failed to toggle anti-sleep", "error", err)
	}
}
