package coordinator

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/Veraticus/awakeguard/pkg/idle"
	"github.com/Veraticus/awakeguard/pkg/interfaces"
	"github.com/Veraticus/awakeguard/pkg/testutil"
	"github.com/Veraticus/awakeguard/pkg/types"
)

// nullTracker never installs, so the classifier always reads the source.
type nullTracker struct{}

func (nullTracker) Start(time.Duration) error              { return nil }
func (nullTracker) Stop()                                  {}
func (nullTracker) Close()                                 {}
func (nullTracker) IdleElapsed(bool) (time.Duration, bool) { return 0, false }
func (nullTracker) Running() bool                          { return false }
func (nullTracker) Failed() bool                           { return true }

type fixture struct {
	coord     *Coordinator
	overlay   *testutil.MockOverlay
	sink      *testutil.MockStatusSink
	keepAwake *testutil.MockKeepAwake
	source    *testutil.MockIdleSource
}

func newFixture(t *testing.T, settings types.RuntimeSettings, pollInterval time.Duration) *fixture {
	t.Helper()
	f := &fixture{
		overlay:   testutil.NewMockOverlay(),
		sink:      testutil.NewMockStatusSink(),
		keepAwake: testutil.NewMockKeepAwake(),
		source:    testutil.NewMockIdleSource(0, true),
	}
	coord, err := New(Config{
		Settings:          settings,
		SettingsPath:      "/tmp/settings.yaml",
		Overlay:           f.overlay,
		Sinks:             []interfaces.StatusSink{f.sink},
		IdleSource:        f.source,
		Tracker:           nullTracker{},
		KeepAwake:         f.keepAwake,
		Pulser:            testutil.NewMockPulser(),
		ClassifierOptions: []idle.Option{idle.WithPollInterval(pollInterval)},
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	f.coord = coord
	t.Cleanup(func() { _ = coord.Close() })
	return f
}

func (f *fixture) status(t *testing.T) types.RuntimeStatus {
	t.Helper()
	s, err := f.coord.Status()
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	return s
}

func TestNew_RejectsInvalidSettings(t *testing.T) {
	s := types.DefaultSettings()
	s.AntiSleepIntervalSeconds = 0

	_, err := New(Config{Settings: s, Tracker: nullTracker{}, KeepAwake: testutil.NewMockKeepAwake()})
	if !errors.Is(err, types.ErrInvalidConfiguration) {
		t.Errorf("New() error = %v, want ErrInvalidConfiguration", err)
	}
}

func TestNew_PushesInitialOverlayConfiguration(t *testing.T) {
	s := types.DefaultSettings()
	s.OverlayOpacity = 0.5
	s.OverlayMonitor = "*"
	s.IdleThresholdSeconds = 0

	f := newFixture(t, s, time.Hour)

	if f.overlay.Opacity() != 0.5 {
		t.Errorf("Opacity() = %v", f.overlay.Opacity())
	}
	if f.overlay.Monitor() != "*" {
		t.Errorf("Monitor() = %q", f.overlay.Monitor())
	}
	if text, enabled := f.overlay.Hint(); !enabled || text != DefaultHintText {
		t.Errorf("Hint() = %q, %v; want default hint enabled", text, enabled)
	}
	if f.overlay.IsVisible() {
		t.Error("overlay must stay hidden until Start")
	}
	if f.sink.Count() != 0 {
		t.Error("nothing is published before Start")
	}
}

func TestCoordinator_StartStop(t *testing.T) {
	s := types.DefaultSettings()
	s.AntiSleepEnabled = true
	f := newFixture(t, s, time.Hour)

	if err := f.coord.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := f.coord.Start(); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}

	st := f.status(t)
	if st.OverlayVisible {
		t.Error("overlay must be hidden while active with a positive threshold")
	}
	if !st.AntiSleepActive || !f.keepAwake.IsActive() {
		t.Error("anti-sleep should be active after Start")
	}
	if st.SettingsPath != "/tmp/settings.yaml" {
		t.Errorf("SettingsPath = %q", st.SettingsPath)
	}
	if f.sink.Count() != 1 {
		t.Errorf("published %d statuses, want 1", f.sink.Count())
	}

	f.coord.Stop()
	f.coord.Stop()
	if f.keepAwake.IsActive() {
		t.Error("Stop should clear the directive")
	}
	st = f.status(t)
	if st.AntiSleepActive || st.OverlayVisible {
		t.Errorf("status after Stop = %+v", st)
	}
	if f.sink.Count() != 2 {
		t.Errorf("published %d statuses, want 2", f.sink.Count())
	}
}

func TestCoordinator_ThresholdZeroPinsOverlay(t *testing.T) {
	s := types.DefaultSettings()
	s.IdleThresholdSeconds = 0
	f := newFixture(t, s, time.Hour)

	_ = f.coord.Start()
	if !f.overlay.IsVisible() {
		t.Error("threshold 0 shows the overlay on Start")
	}

	f.coord.handleTransition(idle.Event{Transition: idle.IdleStarted})
	f.coord.handleTransition(idle.Event{Transition: idle.IdleStopped})
	if f.overlay.CountCalls("hide") != 0 {
		t.Error("pinned overlay must not hide on activity")
	}
	if f.coord.classifier.Threshold() != time.Second {
		t.Errorf("classifier threshold = %v, want the 1s floor", f.coord.classifier.Threshold())
	}
}

func TestCoordinator_IdleTransitions(t *testing.T) {
	f := newFixture(t, types.DefaultSettings(), time.Hour)
	_ = f.coord.Start()
	published := f.sink.Count()

	f.coord.handleTransition(idle.Event{Transition: idle.IdleStarted, Elapsed: 302 * time.Second})
	if !f.overlay.IsVisible() {
		t.Error("overlay should show on IdleStarted")
	}
	if st := f.status(t); !st.IsIdle || !st.OverlayVisible {
		t.Errorf("status = %+v", st)
	}

	f.coord.handleTransition(idle.Event{Transition: idle.IdleStopped})
	if f.overlay.IsVisible() {
		t.Error("overlay should hide on IdleStopped")
	}
	if f.sink.Count() != published+2 {
		t.Errorf("published %d, want one per transition", f.sink.Count()-published)
	}
}

func TestCoordinator_TransitionWhileStoppedIgnored(t *testing.T) {
	f := newFixture(t, types.DefaultSettings(), time.Hour)

	f.coord.handleTransition(idle.Event{Transition: idle.IdleStarted})
	if f.overlay.CountCalls("show") != 0 || f.sink.Count() != 0 {
		t.Error("transitions before Start must be ignored")
	}
}

func TestCoordinator_UpdateSettingsMinimalCalls(t *testing.T) {
	f := newFixture(t, types.DefaultSettings(), time.Hour)
	_ = f.coord.Start()
	f.coord.handleTransition(idle.Event{Transition: idle.IdleStarted})
	f.overlay.ResetCalls()
	enables := f.keepAwake.GetEnableCount()
	published := f.sink.Count()

	next := types.DefaultSettings()
	next.OverlayEnabled = false
	next.AntiSleepEnabled = true
	next.OverlayOpacity = 0.4
	next.IdleThresholdSeconds = 120
	next.SleepProtectionScope = types.ScopeSystemAndDisplay

	if err := f.coord.UpdateSettings(next); err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}

	if got := f.overlay.CountCalls("hide"); got != 1 {
		t.Errorf("hide calls = %d, want 1", got)
	}
	if got := f.overlay.CountCalls("show"); got != 0 {
		t.Errorf("show calls = %d, want 0", got)
	}
	if got := f.overlay.CountCalls("opacity:0.40"); got != 1 {
		t.Errorf("opacity calls = %d, want 1", got)
	}
	if got := f.overlay.CountCalls("monitor:"); got != 0 {
		t.Error("unchanged monitor must not be pushed")
	}
	if got := f.keepAwake.GetEnableCount() - enables; got != 1 {
		t.Errorf("directive asserted %d times, want 1", got)
	}
	if f.keepAwake.LastScope() != types.ScopeSystemAndDisplay {
		t.Errorf("LastScope() = %v", f.keepAwake.LastScope())
	}
	if f.coord.classifier.Threshold() != 2*time.Minute {
		t.Errorf("classifier threshold = %v", f.coord.classifier.Threshold())
	}
	if f.sink.Count() != published+1 {
		t.Errorf("published %d, want 1", f.sink.Count()-published)
	}

	st := f.status(t)
	if st.OverlayVisible || !st.AntiSleepActive || !st.IsIdle {
		t.Errorf("status = %+v", st)
	}
}

func TestCoordinator_UpdateSettingsNoChange(t *testing.T) {
	f := newFixture(t, types.DefaultSettings(), time.Hour)
	_ = f.coord.Start()
	f.overlay.ResetCalls()

	if err := f.coord.UpdateSettings(types.DefaultSettings()); err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}
	if calls := f.overlay.Calls(); len(calls) != 0 {
		t.Errorf("overlay calls = %v, want none", calls)
	}
}

func TestCoordinator_UpdateSettingsHint(t *testing.T) {
	f := newFixture(t, types.DefaultSettings(), time.Hour)
	_ = f.coord.Start()

	next := types.DefaultSettings()
	next.IdleThresholdSeconds = 0
	_ = f.coord.UpdateSettings(next)

	if _, enabled := f.overlay.Hint(); !enabled {
		t.Error("hint should enable when the overlay is pinned")
	}
	if !f.overlay.IsVisible() {
		t.Error("pinning should show the overlay")
	}
	if f.coord.classifier.Threshold() != 5*time.Minute {
		t.Errorf("threshold 0 must not reach the classifier, got %v", f.coord.classifier.Threshold())
	}
}

func TestCoordinator_UpdateSettingsWhileStopped(t *testing.T) {
	f := newFixture(t, types.DefaultSettings(), time.Hour)

	next := types.DefaultSettings()
	next.AntiSleepEnabled = true
	if err := f.coord.UpdateSettings(next); err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}
	if f.keepAwake.IsActive() {
		t.Error("stopped coordinator must not enable the guard")
	}
	st := f.status(t)
	if !st.AntiSleepEnabled || st.AntiSleepActive {
		t.Errorf("status = %+v", st)
	}

	_ = f.coord.Start()
	if !f.keepAwake.IsActive() {
		t.Error("Start should apply the updated settings")
	}
}

func TestCoordinator_UpdateSettingsRejectsInvalid(t *testing.T) {
	f := newFixture(t, types.DefaultSettings(), time.Hour)

	bad := types.DefaultSettings()
	bad.OverlayOpacity = 2
	if err := f.coord.UpdateSettings(bad); !errors.Is(err, types.ErrInvalidConfiguration) {
		t.Errorf("UpdateSettings() error = %v", err)
	}
	if f.coord.Settings().OverlayOpacity != types.DefaultOverlayOpacity {
		t.Error("rejected settings must not be applied")
	}
}

func TestCoordinator_UpdateSettingsRejectsHugeThreshold(t *testing.T) {
	f := newFixture(t, types.DefaultSettings(), time.Hour)

	bad := types.DefaultSettings()
	bad.IdleThresholdSeconds = types.MaxIdleThresholdSeconds + 1
	if err := f.coord.UpdateSettings(bad); !errors.Is(err, types.ErrInvalidConfiguration) {
		t.Errorf("UpdateSettings() error = %v", err)
	}
	if got := f.coord.Settings().IdleThresholdSeconds; got != types.DefaultIdleThresholdSeconds {
		t.Errorf("IdleThresholdSeconds = %d, rejected settings must not be applied", got)
	}
}

func TestCoordinator_SinkFailureIsSwallowed(t *testing.T) {
	f := newFixture(t, types.DefaultSettings(), time.Hour)
	f.sink.SetError(errors.New("disk full"))

	if err := f.coord.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := f.coord.Status(); err != nil {
		t.Errorf("Status() error = %v", err)
	}
}

func TestCoordinator_EndToEndIdle(t *testing.T) {
	s := types.DefaultSettings()
	s.IdleThresholdSeconds = 60
	f := newFixture(t, s, 2*time.Millisecond)
	_ = f.coord.Start()

	f.source.SetElapsed(10 * time.Minute)
	deadline := time.Now().Add(time.Second)
	for !f.overlay.IsVisible() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !f.overlay.IsVisible() {
		t.Fatal("overlay should show once the source reports idle")
	}

	f.source.SetElapsed(0)
	deadline = time.Now().Add(time.Second)
	for f.overlay.IsVisible() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if f.overlay.IsVisible() {
		t.Fatal("overlay should hide once input resumes")
	}
}

func TestCoordinator_Close(t *testing.T) {
	s := types.DefaultSettings()
	s.AntiSleepEnabled = true
	s.IdleThresholdSeconds = 0
	f := newFixture(t, s, time.Hour)
	_ = f.coord.Start()

	if err := f.coord.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if f.keepAwake.IsActive() {
		t.Error("directive left asserted after Close")
	}
	if f.overlay.IsVisible() {
		t.Error("overlay left visible after Close")
	}
	if !f.overlay.IsClosed() {
		t.Error("overlay should be closed")
	}

	if err := f.coord.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := f.coord.Start(); !errors.Is(err, types.ErrClosed) {
		t.Errorf("Start() after Close error = %v", err)
	}
	if err := f.coord.UpdateSettings(types.DefaultSettings()); !errors.Is(err, types.ErrClosed) {
		t.Errorf("UpdateSettings() after Close error = %v", err)
	}
	if _, err := f.coord.Status(); !errors.Is(err, types.ErrClosed) {
		t.Errorf("Status() after Close error = %v", err)
	}

	published := f.sink.Count()
	f.coord.handleTransition(idle.Event{Transition: idle.IdleStarted})
	f.coord.Stop()
	if f.sink.Count() != published {
		t.Error("nothing is published after Close")
	}
}
