package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"

	"github.com/Veraticus/awakeguard/pkg/config"
	"github.com/Veraticus/awakeguard/pkg/instance"
	"github.com/Veraticus/awakeguard/pkg/settings"
	"github.com/Veraticus/awakeguard/pkg/status"
	"github.com/Veraticus/awakeguard/pkg/tray"
	"github.com/Veraticus/awakeguard/pkg/types"
)

var version = "dev"

func main() {
	if err := newRootCommand(version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options are the flags shared by every subcommand
type options struct {
	configPath string
	debug      bool
	quiet      bool
	tray       bool
}

func (o *options) bind(fs *flag.FlagSet) {
	fs.StringVar(&o.configPath, "config", "", "Path to config file")
	fs.BoolVar(&o.debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&o.quiet, "quiet", false, "Disable toggle notifications and the status line")
}

// load reads the config file and environment, then applies explicit flags.
func (o *options) load(fs *flag.FlagSet) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFrom(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	if fs.Changed("debug") {
		cfg.Debug = o.debug
	}
	if fs.Changed("quiet") {
		cfg.Quiet = o.quiet
	}
	if f := fs.Lookup("tray"); f != nil && f.Changed {
		cfg.Tray = o.tray
	}
	return cfg, nil
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func newRootCommand(version string) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "awakeguard",
		Short: "Dim the screen while idle and keep the machine awake on demand",
		Long: `awakeguard watches user input, shows an overlay once the machine has been
idle for the configured threshold and can keep the system from sleeping.

Settings live in a YAML (or TOML) file that the tray menu and the
"settings" command both edit. Send SIGHUP to a running instance to make it
re-read the file.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.bind(root.PersistentFlags())

	runCmd := newRunCommand(opts)
	root.RunE = runCmd.RunE
	root.Flags().AddFlagSet(runCmd.LocalFlags())

	root.AddCommand(
		runCmd,
		newStatusCommand(opts),
		newSettingsCommand(opts),
		newVersionCommand(version),
	)
	return root
}

func newRunCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the idle overlay and sleep guard (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().BoolVar(&opts.tray, "tray", false, "Show a system tray menu")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(os.Stderr, cfg.Debug)
	slog.SetDefault(logger)

	lock, err := instance.Acquire(cfg.PIDFile)
	if errors.Is(err, instance.ErrAlreadyRunning) {
		pid, _ := instance.ReadPID(cfg.PIDFile)
		logger.Info("awakeguard is already running", "pid", pid)
		return nil
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("failed to release pid file", "error", err)
		}
	}()

	deps, err := NewDependencies(cfg, Platform{}, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	app := NewApplication(deps)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-hup:
				if err := app.Reload(); err != nil {
					logger.Warn("failed to reload settings", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// Ensure the overlay and keep-awake directive are released on panic
	defer func() {
		if r := recover(); r != nil {
			app.Stop()
			panic(r)
		}
	}()

	return app.Run(ctx)
}

func newStatusCommand(opts *options) *cobra.Command {
	var history int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last published runtime status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd.Flags())
			if err != nil {
				return err
			}
			pid, running := instance.Running(cfg.PIDFile)
			st, err := status.ReadFile(cfg.StatusPath)
			if err != nil && running {
				return err
			}
			var last *types.RuntimeStatus
			if err == nil {
				last = &st
			}
			printStatus(cmd.OutOrStdout(), last, pid, running)

			if history <= 0 {
				return nil
			}
			if cfg.HistoryPath == "" {
				return errors.New("no history_path configured")
			}
			h, err := status.OpenHistory(cfg.HistoryPath)
			if err != nil {
				return err
			}
			defer func() { _ = h.Close() }()
			records, err := h.Recent(history)
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), records)
			return nil
		},
	}
	cmd.Flags().IntVar(&history, "history", 0, "Also show the last N recorded state changes")
	return cmd
}

func printStatus(w io.Writer, st *types.RuntimeStatus, pid int, running bool) {
	if running {
		fmt.Fprintf(w, "awakeguard: running (pid %d)\n", pid)
	} else {
		fmt.Fprintln(w, "awakeguard: not running")
	}
	if st == nil {
		return
	}
	fmt.Fprintf(w, "  updated:     %s\n", st.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  idle:        %s\n", yesNo(st.IsIdle))
	fmt.Fprintf(w, "  overlay:     %s (%s)\n", enabled(st.OverlayEnabled), visible(st.OverlayVisible))
	fmt.Fprintf(w, "  anti-sleep:  %s (%s)\n", enabled(st.AntiSleepEnabled), activeText(st.AntiSleepActive))
	if st.SettingsPath != "" {
		fmt.Fprintf(w, "  settings:    %s\n", st.SettingsPath)
	}
}

func printHistory(w io.Writer, records []status.Record) {
	fmt.Fprintln(w, "\nrecent changes:")
	if len(records) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, r := range records {
		st := types.RuntimeStatus{
			IsIdle:           r.IsIdle,
			OverlayEnabled:   r.OverlayEnabled,
			OverlayVisible:   r.OverlayVisible,
			AntiSleepEnabled: r.AntiSleepEnabled,
			AntiSleepActive:  r.AntiSleepActive,
		}
		fmt.Fprintf(w, "  %s  %s  %s\n", r.Timestamp.Format("2006-01-02 15:04:05"), shortID(r.SessionID), tray.StatusLine(st))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newSettingsCommand(opts *options) *cobra.Command {
	var sets []string
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the persisted settings",
		Long: `Show the resolved settings, or change them with --set key=value.
A running instance picks up the change after SIGHUP or a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd.Flags())
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg.Debug)
			store := settings.NewStore(cfg.SettingsPath, logger)

			s, err := applySettings(store, sets)
			if err != nil {
				return err
			}
			printSettings(cmd.OutOrStdout(), store.Path(), s)

			if len(sets) > 0 {
				if pid, running := instance.Running(cfg.PIDFile); running {
					fmt.Fprintf(cmd.OutOrStdout(), "\nawakeguard is running (pid %d); send it SIGHUP to apply.\n", pid)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Set a value, e.g. --set idle_threshold_seconds=120 (repeatable)")
	return cmd
}

// applySettings loads the store, applies every key=value pair and saves the
// result. With no pairs the file is only read.
func applySettings(store *settings.Store, sets []string) (types.RuntimeSettings, error) {
	s, err := store.Load()
	if err != nil {
		return s, err
	}
	if len(sets) == 0 {
		return s, nil
	}
	for _, kv := range sets {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return s, errors.Errorf("invalid --set %q: want key=value", kv)
		}
		s, err = settings.Apply(s, strings.TrimSpace(key), strings.TrimSpace(value))
		if err != nil {
			return s, err
		}
	}
	if err := store.Save(s); err != nil {
		return s, err
	}
	return s, nil
}

func printSettings(w io.Writer, path string, s types.RuntimeSettings) {
	values := map[string]string{
		"schema_version":              fmt.Sprint(s.SchemaVersion),
		"idle_threshold_seconds":      fmt.Sprint(s.IdleThresholdSeconds),
		"overlay_enabled":             fmt.Sprint(s.OverlayEnabled),
		"overlay_opacity":             fmt.Sprint(s.OverlayOpacity),
		"overlay_monitor":             s.OverlayMonitor,
		"anti_sleep_enabled":          fmt.Sprint(s.AntiSleepEnabled),
		"anti_sleep_interval_seconds": fmt.Sprint(s.AntiSleepIntervalSeconds),
		"anti_sleep_input_pulse":      fmt.Sprint(s.AntiSleepInputPulse),
		"sleep_protection_scope":      s.SleepProtectionScope.String(),
		"ignore_injected_input":       fmt.Sprint(s.IgnoreInjectedInput),
	}

	fmt.Fprintf(w, "settings: %s\n", path)
	for _, k := range settings.Keys() {
		fmt.Fprintf(w, "  %-28s %s\n", k, values[k])
	}
}

func newVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "awakeguard %s\n", version)
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func enabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func visible(b bool) string {
	if b {
		return "shown"
	}
	return "hidden"
}

func activeText(b bool) string {
	if b {
		return "active"
	}
	return "inactive"
}
