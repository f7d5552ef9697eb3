package idle

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/Veraticus/awakeguard/pkg/testutil"
	"github.com/Veraticus/awakeguard/pkg/types"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) handle(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) transitions() []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Transition, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Transition)
	}
	return out
}

// fakeTracker is a scripted WatermarkTracker.
type fakeTracker struct {
	mu         sync.Mutex
	running    bool
	failed     bool
	installed  bool
	elapsed    time.Duration
	wake       time.Duration
	seeds      []time.Duration
	stopCalls  int
	closeCalls int
	lastAllow  bool
}

func (f *fakeTracker) Start(seed time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeds = append(f.seeds, seed)
	f.running = true
	return nil
}

func (f *fakeTracker) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	f.running = false
}

func (f *fakeTracker) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	f.running = false
}

func (f *fakeTracker) IdleElapsed(allowInjectedWake bool) (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastAllow = allowInjectedWake
	if !f.running || !f.installed {
		return 0, false
	}
	if allowInjectedWake && f.wake < f.elapsed {
		return f.wake, true
	}
	return f.elapsed, true
}

func (f *fakeTracker) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeTracker) Failed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failed
}

func (f *fakeTracker) set(fn func(*fakeTracker)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

// newTestClassifier builds a classifier marked running without a poll
// goroutine so that ticks are driven by the test.
func newTestClassifier(t *testing.T, threshold time.Duration, source *testutil.MockIdleSource, tracker *fakeTracker) (*Classifier, *eventRecorder) {
	t.Helper()
	rec := &eventRecorder{}
	c, err := NewClassifier(threshold, rec.handle,
		WithSource(source),
		WithTracker(tracker),
		WithDebounceTolerance(2*time.Second),
	)
	if err != nil {
		t.Fatalf("NewClassifier() error = %v", err)
	}
	c.mu.Lock()
	c.running = true
	c.mu.Unlock()
	return c, rec
}

func TestBoundaries(t *testing.T) {
	tests := []struct {
		name      string
		threshold time.Duration
		tolerance time.Duration
		wantStart time.Duration
		wantStop  time.Duration
	}{
		{"default", 300 * time.Second, 2 * time.Second, 302 * time.Second, 298 * time.Second},
		{"tolerance clamped to half", 2 * time.Second, 5 * time.Second, 3 * time.Second, time.Second},
		{"zero tolerance", time.Minute, 0, time.Minute, time.Minute},
		{"tiny threshold", time.Millisecond, 2 * time.Second, 1500 * time.Microsecond, 500 * time.Microsecond},
		{"negative tolerance", time.Minute, -time.Second, time.Minute, time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, stop := Boundaries(tt.threshold, tt.tolerance)
			if start != tt.wantStart || stop != tt.wantStop {
				t.Errorf("Boundaries() = (%v, %v), want (%v, %v)", start, stop, tt.wantStart, tt.wantStop)
			}
			if stop < 0 || stop > tt.threshold || tt.threshold > start {
				t.Errorf("ordering violated: stop=%v threshold=%v start=%v", stop, tt.threshold, start)
			}
		})
	}
}

func TestBoundaries_Ordering(t *testing.T) {
	for threshold := time.Duration(0); threshold <= 10*time.Second; threshold += 250 * time.Millisecond {
		for tolerance := time.Duration(0); tolerance <= 10*time.Second; tolerance += 500 * time.Millisecond {
			start, stop := Boundaries(threshold, tolerance)
			if stop < 0 || stop > threshold || threshold > start {
				t.Fatalf("Boundaries(%v, %v) = (%v, %v)", threshold, tolerance, start, stop)
			}
		}
	}
}

func TestNewClassifier_Validation(t *testing.T) {
	source := testutil.NewMockIdleSource(0, true)
	tests := []struct {
		name      string
		threshold time.Duration
		opts      []Option
	}{
		{"zero threshold", 0, nil},
		{"negative threshold", -time.Second, nil},
		{"zero poll interval", time.Minute, []Option{WithPollInterval(0)}},
		{"negative tolerance", time.Minute, []Option{WithDebounceTolerance(-time.Second)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]Option{WithSource(source), WithTracker(&fakeTracker{})}, tt.opts...)
			_, err := NewClassifier(tt.threshold, nil, opts...)
			if !errors.Is(err, types.ErrInvalidConfiguration) {
				t.Errorf("NewClassifier() error = %v, want ErrInvalidConfiguration", err)
			}
		})
	}
}

func TestClassifier_HysteresisSequence(t *testing.T) {
	source := testutil.NewMockIdleSource(0, true)
	c, rec := newTestClassifier(t, 300*time.Second, source, &fakeTracker{})

	sequence := []struct {
		elapsed  time.Duration
		wantIdle bool
	}{
		{0, false},
		{301999 * time.Millisecond, false},
		{302000 * time.Millisecond, true},
		{305000 * time.Millisecond, true},
		{298001 * time.Millisecond, true},
		{298000 * time.Millisecond, false},
		{0, false},
	}

	for _, step := range sequence {
		source.SetElapsed(step.elapsed)
		c.tick(c.gen)
		if got := c.IsIdle(); got != step.wantIdle {
			t.Errorf("after %v IsIdle() = %v, want %v", step.elapsed, got, step.wantIdle)
		}
	}

	got := rec.transitions()
	want := []Transition{IdleStarted, IdleStopped}
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, got[i], want[i])
		}
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.events[0].Elapsed != 302000*time.Millisecond {
		t.Errorf("IdleStarted elapsed = %v", rec.events[0].Elapsed)
	}
}

func TestClassifier_NoReadingSkipsTick(t *testing.T) {
	source := testutil.NewMockIdleSource(time.Hour, false)
	c, rec := newTestClassifier(t, time.Minute, source, &fakeTracker{})

	c.tick(c.gen)

	if c.IsIdle() {
		t.Error("classifier should stay active without a reading")
	}
	if len(rec.transitions()) != 0 {
		t.Errorf("unexpected transitions: %v", rec.transitions())
	}
}

func TestClassifier_SourceFunc(t *testing.T) {
	readings := []time.Duration{0, 3 * time.Minute, 10 * time.Second}
	calls := 0
	source := SourceFunc(func() (time.Duration, bool) {
		d := readings[calls%len(readings)]
		calls++
		return d, true
	})

	rec := &eventRecorder{}
	c, err := NewClassifier(time.Minute, rec.handle, WithSource(source), WithTracker(&fakeTracker{}))
	if err != nil {
		t.Fatalf("NewClassifier() error = %v", err)
	}
	c.mu.Lock()
	c.running = true
	c.mu.Unlock()

	for range readings {
		c.tick(c.gen)
	}

	want := []Transition{IdleStarted, IdleStopped}
	got := rec.transitions()
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, got[i], want[i])
		}
	}
	if calls != len(readings) {
		t.Errorf("source called %d times, want %d", calls, len(readings))
	}
}

func TestClassifier_StaleGenerationIgnored(t *testing.T) {
	source := testutil.NewMockIdleSource(time.Hour, true)
	c, rec := newTestClassifier(t, time.Minute, source, &fakeTracker{})

	c.tick(c.gen + 1)

	if len(rec.transitions()) != 0 {
		t.Error("tick from a stale poll loop must not classify")
	}
}

func TestClassifier_UpdateIdleThreshold(t *testing.T) {
	source := testutil.NewMockIdleSource(90*time.Second, true)
	c, rec := newTestClassifier(t, 5*time.Minute, source, &fakeTracker{})

	c.tick(c.gen)
	if c.IsIdle() {
		t.Fatal("90s should be active under a 5m threshold")
	}

	if err := c.UpdateIdleThreshold(time.Minute); err != nil {
		t.Fatalf("UpdateIdleThreshold() error = %v", err)
	}
	c.tick(c.gen)
	if !c.IsIdle() {
		t.Error("90s should be idle under a 1m threshold")
	}
	if len(rec.transitions()) != 1 {
		t.Errorf("transitions = %v", rec.transitions())
	}

	if err := c.UpdateIdleThreshold(0); !errors.Is(err, types.ErrInvalidConfiguration) {
		t.Errorf("UpdateIdleThreshold(0) error = %v", err)
	}
	if c.Threshold() != time.Minute {
		t.Errorf("Threshold() = %v after rejected update", c.Threshold())
	}
}

func TestClassifier_IgnoreInjectedInput(t *testing.T) {
	t.Run("seeds tracker from unfiltered source", func(t *testing.T) {
		source := testutil.NewMockIdleSource(42*time.Second, true)
		tracker := &fakeTracker{}
		c, _ := newTestClassifier(t, time.Minute, source, tracker)

		if err := c.UpdateIgnoreInjectedInput(true); err != nil {
			t.Fatalf("UpdateIgnoreInjectedInput() error = %v", err)
		}
		if len(tracker.seeds) != 1 || tracker.seeds[0] != 42*time.Second {
			t.Errorf("seeds = %v, want [42s]", tracker.seeds)
		}

		if err := c.UpdateIgnoreInjectedInput(false); err != nil {
			t.Fatalf("UpdateIgnoreInjectedInput(false) error = %v", err)
		}
		if tracker.stopCalls != 1 {
			t.Errorf("stopCalls = %d, want 1", tracker.stopCalls)
		}
	})

	t.Run("pending install skips tick", func(t *testing.T) {
		source := testutil.NewMockIdleSource(time.Hour, true)
		tracker := &fakeTracker{}
		c, rec := newTestClassifier(t, time.Minute, source, tracker)
		_ = c.UpdateIgnoreInjectedInput(true)

		c.tick(c.gen)
		if len(rec.transitions()) != 0 {
			t.Error("tick must be skipped while the hook is not installed")
		}
	})

	t.Run("failed tracker falls back to source", func(t *testing.T) {
		source := testutil.NewMockIdleSource(time.Hour, true)
		tracker := &fakeTracker{}
		c, rec := newTestClassifier(t, time.Minute, source, tracker)
		_ = c.UpdateIgnoreInjectedInput(true)
		tracker.set(func(f *fakeTracker) {
			f.running = false
			f.failed = true
		})

		c.tick(c.gen)
		if got := rec.transitions(); len(got) != 1 || got[0] != IdleStarted {
			t.Errorf("transitions = %v, want [IdleStarted]", got)
		}
	})

	t.Run("injected wake only counts while idle", func(t *testing.T) {
		source := testutil.NewMockIdleSource(0, true)
		tracker := &fakeTracker{}
		c, rec := newTestClassifier(t, time.Minute, source, tracker)
		_ = c.UpdateIgnoreInjectedInput(true)
		tracker.set(func(f *fakeTracker) {
			f.installed = true
			f.elapsed = 2 * time.Minute
			f.wake = time.Second
		})

		// Active: the injected wake is ignored so the physical reading wins.
		c.tick(c.gen)
		if !c.IsIdle() {
			t.Fatal("injected input must not keep the user active")
		}
		if tracker.lastAllow {
			t.Error("wake must not be allowed while active")
		}

		// Idle: the injected interaction wakes.
		c.tick(c.gen)
		if c.IsIdle() {
			t.Error("injected interaction should wake from idle")
		}
		if !tracker.lastAllow {
			t.Error("wake must be allowed while idle")
		}
		if got := rec.transitions(); len(got) != 2 {
			t.Errorf("transitions = %v", got)
		}
	})
}

func TestClassifier_StartStop(t *testing.T) {
	source := testutil.NewMockIdleSource(time.Hour, true)
	rec := &eventRecorder{}
	c, err := NewClassifier(time.Minute, rec.handle,
		WithSource(source),
		WithTracker(&fakeTracker{}),
		WithPollInterval(5*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("NewClassifier() error = %v", err)
	}
	defer c.Close()

	if err := c.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for !c.IsIdle() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !c.IsIdle() {
		t.Fatal("classifier should become idle")
	}

	c.Stop()
	c.Stop()
	if c.IsIdle() {
		t.Error("Stop should reset the state to active")
	}

	time.Sleep(20 * time.Millisecond)
	if got := rec.transitions(); len(got) != 1 {
		t.Errorf("transitions = %v, want exactly one IdleStarted", got)
	}
}

func TestClassifier_Dispatcher(t *testing.T) {
	source := testutil.NewMockIdleSource(time.Hour, true)
	d := NewSerialDispatcher(4)
	defer d.Close()

	delivered := make(chan Event, 1)
	c, err := NewClassifier(time.Minute, func(ev Event) { delivered <- ev },
		WithSource(source),
		WithTracker(&fakeTracker{}),
		WithDispatcher(d),
	)
	if err != nil {
		t.Fatalf("NewClassifier() error = %v", err)
	}
	c.running = true

	c.tick(c.gen)

	select {
	case ev := <-delivered:
		if ev.Transition != IdleStarted {
			t.Errorf("Transition = %v", ev.Transition)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered through dispatcher")
	}
}

func TestClassifier_DetachAndClose(t *testing.T) {
	source := testutil.NewMockIdleSource(time.Hour, true)
	tracker := &fakeTracker{}
	c, rec := newTestClassifier(t, time.Minute, source, tracker)

	c.Detach()
	c.tick(c.gen)
	if len(rec.transitions()) != 0 {
		t.Error("detached classifier must not deliver")
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if tracker.closeCalls != 1 {
		t.Errorf("tracker closeCalls = %d, want 1", tracker.closeCalls)
	}

	if err := c.Start(); !errors.Is(err, types.ErrClosed) {
		t.Errorf("Start() after Close error = %v", err)
	}
	if err := c.UpdateIdleThreshold(time.Minute); !errors.Is(err, types.ErrClosed) {
		t.Errorf("UpdateIdleThreshold() after Close error = %v", err)
	}
	if err := c.UpdateIgnoreInjectedInput(true); !errors.Is(err, types.ErrClosed) {
		t.Errorf("UpdateIgnoreInjectedInput() after Close error = %v", err)
	}
	if _, _, err := c.IdleElapsed(); !errors.Is(err, types.ErrClosed) {
		t.Errorf("IdleElapsed() after Close error = %v", err)
	}
}

func TestSerialDispatcher_Order(t *testing.T) {
	d := NewSerialDispatcher(8)

	var mu sync.Mutex
	var got []int
	for i := 0; i < 5; i++ {
		i := i
		d.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	d.Close()
	d.Post(func() { t.Error("posted after Close must be dropped") })

	for i, v := range got {
		if v != i {
			t.Fatalf("order = %v", got)
		}
	}
	if len(got) != 5 {
		t.Errorf("delivered %d, want 5", len(got))
	}
}

func TestParseHIDIdleTime(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		want        int64
		expectError bool
	}{
		{
			name: "Valid HIDIdleTime",
			input: `    | |   |   +-o IOHIDSystem  <class IOHIDSystem, id 0x1000002d0, registered>
    | |   |     {
    | |   |       "HIDIdleTime" = 3456789012
    | |   |       "IOClass" = "IOHIDSystem"
    | |   |     }`,
			want: 3456789012,
		},
		{
			name:  "Quoted value",
			input: `    | |   |       "HIDIdleTime" = "1234567890"`,
			want:  1234567890,
		},
		{
			name:        "Missing",
			input:       `"IOClass" = "IOHIDSystem"`,
			expectError: true,
		},
		{
			name:        "Not a number",
			input:       `"HIDIdleTime" = "soon"`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseHIDIdleTime([]byte(tt.input))
			if (err != nil) != tt.expectError {
				t.Errorf("parseHIDIdleTime() error = %v, expectError %v", err, tt.expectError)
			}
			if got != tt.want {
				t.Errorf("parseHIDIdleTime() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIoregSource(t *testing.T) {
	s := &ioregSource{run: func(name string, args ...string) ([]byte, error) {
		if name != "ioreg" {
			t.Errorf("unexpected command %q", name)
		}
		return []byte(`"HIDIdleTime" = 5000000000`), nil
	}}

	elapsed, ok := s.IdleElapsed()
	if !ok || elapsed != 5*time.Second {
		t.Errorf("IdleElapsed() = %v, %v", elapsed, ok)
	}

	s.run = func(string, ...string) ([]byte, error) { return nil, errors.New("ioreg missing") }
	if _, ok := s.IdleElapsed(); ok {
		t.Error("IdleElapsed should report false when ioreg fails")
	}
}
