package inputhook

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Veraticus/awakeguard/pkg/types"
)

// DefaultStopTimeout bounds how long Stop waits for the hook goroutine.
const DefaultStopTimeout = time.Second

// Tracker keeps input watermarks fed by a Hook.
//
// Watermarks are monotonic offsets from the tracker's creation and are
// written by the hook goroutine without taking the tracker lock.
type Tracker struct {
	mu          sync.Mutex
	newHook     func() Hook
	stopTimeout time.Duration
	logger      *slog.Logger

	hook      Hook
	done      chan struct{}
	gen       uint64
	running   bool
	installed bool
	failed    bool
	closed    bool

	epoch            time.Time
	lastPhysical     atomic.Int64
	lastInjectedWake atomic.Int64
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithHookFactory replaces the platform hook.
func WithHookFactory(f func() Hook) Option {
	return func(t *Tracker) {
		t.newHook = f
	}
}

// WithStopTimeout sets how long Stop waits for the hook goroutine to exit.
func WithStopTimeout(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.stopTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTracker creates a stopped tracker using the platform hook.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		newHook:     NewPlatformHook,
		stopTimeout: DefaultStopTimeout,
		logger:      slog.Default(),
		epoch:       time.Now(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) now() int64 {
	return int64(time.Since(t.epoch))
}

// Start seeds both watermarks to now minus seed and installs the hook on a
// dedicated goroutine. It is a no-op while already running.
func (t *Tracker) Start(seed time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return types.ErrClosed
	}
	if t.running {
		return nil
	}

	if seed < 0 {
		seed = 0
	}
	mark := t.now() - int64(seed)
	t.lastPhysical.Store(mark)
	t.lastInjectedWake.Store(mark)

	t.gen++
	t.running = true
	t.installed = false
	t.failed = false
	t.hook = t.newHook()
	t.done = make(chan struct{})

	go t.run(t.hook, t.gen, t.done)
	return nil
}

func (t *Tracker) run(hook Hook, gen uint64, done chan struct{}) {
	defer close(done)

	hook.Run(t.observe, func(err error) {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.gen != gen {
			return
		}
		if err != nil {
			t.failed = true
			t.running = false
			t.logger.Warn("input hook installation failed", "error", err)
			return
		}
		t.installed = true
		t.logger.Debug("input hook installed")
	})

	t.mu.Lock()
	if t.gen == gen {
		t.installed = false
	}
	t.mu.Unlock()
}

func (t *Tracker) observe(ev Event) {
	now := t.now()
	if !ev.Injected {
		t.lastPhysical.Store(now)
		return
	}
	if ev.Kind.IsInteraction() {
		t.lastInjectedWake.Store(now)
	}
}

// Stop signals the hook goroutine to exit and waits up to the stop timeout.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	hook, done := t.hook, t.done
	t.running = false
	t.installed = false
	t.hook = nil
	t.done = nil
	t.gen++
	t.mu.Unlock()

	hook.Quit()

	select {
	case <-done:
	case <-time.After(t.stopTimeout):
		t.logger.Warn("input hook did not exit in time", "timeout", t.stopTimeout)
	}
}

// Close stops the tracker permanently.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	t.Stop()
}

// IdleElapsed returns the time since the latest physical input, or since the
// latest injected interaction when allowInjectedWake is set and it is newer.
// It reports false until the hook is installed.
func (t *Tracker) IdleElapsed(allowInjectedWake bool) (time.Duration, bool) {
	t.mu.Lock()
	installed := t.installed
	t.mu.Unlock()
	if !installed {
		return 0, false
	}

	baseline := t.lastPhysical.Load()
	if allowInjectedWake {
		if wake := t.lastInjectedWake.Load(); wake > baseline {
			baseline = wake
		}
	}

	elapsed := t.now() - baseline
	if elapsed < 0 {
		elapsed = 0
	}
	return time.Duration(elapsed), true
}

// Running reports whether the tracker has been started and not stopped or failed.
func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Installed reports whether the hook confirmed installation.
func (t *Tracker) Installed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.installed
}

// Failed reports whether the last Start failed to install the hook.
func (t *Tracker) Failed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failed
}
