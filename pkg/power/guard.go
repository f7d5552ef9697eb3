// Package power keeps the machine awake on demand by periodically asserting
// an OS sleep-prevention directive and, optionally, nudging the cursor.
package power

import (
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/Veraticus/awakeguard/pkg/interfaces"
	"github.com/Veraticus/awakeguard/pkg/types"
)

// DefaultHeartbeatInterval is the refresh period used when none is configured.
const DefaultHeartbeatInterval = 55 * time.Second

// Guard asserts the sleep-prevention directive while it is both started and
// enabled, and clears it whenever either condition ends.
type Guard struct {
	mu sync.Mutex

	keepAwake interfaces.KeepAwake
	pulser    interfaces.InputPulser
	logger    *slog.Logger

	interval       time.Duration
	scope          types.SleepProtectionScope
	preventSleep   bool
	inputKeepAlive bool

	started bool
	enabled bool
	closed  bool
	gen     uint64
	stopCh  chan struct{}
}

// Option configures a Guard.
type Option func(*Guard)

// WithKeepAwake replaces the platform sleep-prevention primitive.
func WithKeepAwake(k interfaces.KeepAwake) Option {
	return func(g *Guard) {
		g.keepAwake = k
	}
}

// WithPulser replaces the platform input pulser.
func WithPulser(p interfaces.InputPulser) Option {
	return func(g *Guard) {
		g.pulser = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithPreventSleep sets whether heartbeats assert the directive. Defaults to true.
func WithPreventSleep(on bool) Option {
	return func(g *Guard) {
		g.preventSleep = on
	}
}

// WithInputKeepAlive sets whether heartbeats pulse synthetic input. Defaults to false.
func WithInputKeepAlive(on bool) Option {
	return func(g *Guard) {
		g.inputKeepAlive = on
	}
}

// NewGuard creates a stopped, disabled guard.
func NewGuard(interval time.Duration, scope types.SleepProtectionScope, opts ...Option) (*Guard, error) {
	if err := validate(interval, scope); err != nil {
		return nil, err
	}

	g := &Guard{
		interval:     interval,
		scope:        scope,
		preventSleep: true,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.keepAwake == nil {
		g.keepAwake = NewKeepAwake()
	}
	if g.pulser == nil {
		g.pulser = NewPulser()
	}
	return g, nil
}

func validate(interval time.Duration, scope types.SleepProtectionScope) error {
	if interval <= 0 {
		return errors.Wrapf(types.ErrInvalidConfiguration, "heartbeat interval %v must be positive", interval)
	}
	if !scope.Valid() {
		return errors.Wrapf(types.ErrInvalidConfiguration, "sleep protection scope %d", int(scope))
	}
	return nil
}

// Start marks the guard started. If it is enabled the heartbeat is armed and
// the directive asserted immediately.
func (g *Guard) Start() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return types.ErrClosed
	}
	if g.started {
		g.mu.Unlock()
		return nil
	}
	g.started = true
	apply := g.enabled
	if apply {
		g.armLocked()
	}
	g.mu.Unlock()

	if apply {
		g.heartbeat(0, true)
	}
	return nil
}

// Stop disarms the heartbeat and clears the directive if it was asserted.
// The enabled flag is kept so a later Start resumes protection.
func (g *Guard) Stop() {
	g.mu.Lock()
	if g.closed || !g.started {
		g.mu.Unlock()
		return
	}
	g.started = false
	g.disarmLocked()
	if g.enabled {
		g.clearLocked()
	}
	g.mu.Unlock()
}

// Enable turns protection on. It implies Start.
func (g *Guard) Enable() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return types.ErrClosed
	}
	if g.enabled && g.started {
		g.mu.Unlock()
		return nil
	}
	g.enabled = true
	g.started = true
	g.armLocked()
	g.mu.Unlock()

	g.heartbeat(0, true)
	return nil
}

// Disable turns protection off and clears the directive.
func (g *Guard) Disable() {
	g.mu.Lock()
	if g.closed || !g.enabled {
		g.mu.Unlock()
		return
	}
	g.enabled = false
	g.disarmLocked()
	g.clearLocked()
	g.mu.Unlock()
}

// UpdateConfiguration changes the heartbeat interval and scope. While active
// the heartbeat is re-armed and the directive re-asserted with the new scope.
func (g *Guard) UpdateConfiguration(interval time.Duration, scope types.SleepProtectionScope) error {
	if err := validate(interval, scope); err != nil {
		return err
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return types.ErrClosed
	}
	g.interval = interval
	g.scope = scope
	apply := g.started && g.enabled
	if apply {
		g.armLocked()
	}
	g.mu.Unlock()

	if apply {
		g.heartbeat(0, true)
	}
	return nil
}

// SetPreventSleep toggles whether heartbeats assert the directive.
func (g *Guard) SetPreventSleep(on bool) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return types.ErrClosed
	}
	changed := g.preventSleep != on
	g.preventSleep = on
	active := g.started && g.enabled
	if changed && active && !on {
		g.clearLocked()
	}
	g.mu.Unlock()

	if changed && active && on {
		g.heartbeat(0, true)
	}
	return nil
}

// SetInputKeepAlive toggles the synthetic cursor nudge on each heartbeat.
func (g *Guard) SetInputKeepAlive(on bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return types.ErrClosed
	}
	g.inputKeepAlive = on
	return nil
}

// Started reports whether the guard is started.
func (g *Guard) Started() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.started
}

// Enabled reports whether protection is enabled.
func (g *Guard) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled
}

// Close stops the guard permanently. The directive is always cleared.
func (g *Guard) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	g.started = false
	g.enabled = false
	g.disarmLocked()
	g.clearLocked()
	g.mu.Unlock()
	return nil
}

// armLocked (re)starts the heartbeat goroutine at the current interval.
func (g *Guard) armLocked() {
	g.disarmLocked()
	g.gen++
	g.stopCh = make(chan struct{})
	go g.loop(g.gen, g.interval, g.stopCh)
}

func (g *Guard) disarmLocked() {
	if g.stopCh != nil {
		close(g.stopCh)
		g.stopCh = nil
	}
	g.gen++
}

func (g *Guard) loop(gen uint64, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			g.heartbeat(gen, false)
		}
	}
}

// heartbeat asserts the directive once. A gen of 0 is an explicit call from
// a public operation; otherwise the tick must belong to the current loop.
// Assertions and clears are both issued under the lock so they reach the OS
// in the same order as the state changes that caused them.
func (g *Guard) heartbeat(gen uint64, continuous bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed || !g.started || !g.enabled {
		return
	}
	if gen != 0 && gen != g.gen {
		return
	}

	if g.preventSleep {
		var err error
		if continuous {
			err = g.keepAwake.Enable(g.scope)
		} else {
			err = g.keepAwake.Refresh(g.scope)
		}
		if err != nil {
			g.logger.Warn("failed to assert sleep prevention", "scope", g.scope, "error", err)
		}
	}

	if g.inputKeepAlive {
		if err := g.pulser.Pulse(); err != nil {
			g.logger.Warn("failed to pulse input", "error", err)
		}
	}
}

func (g *Guard) clearLocked() {
	if err := g.keepAwake.Disable(); err != nil {
		g.logger.Warn("failed to clear sleep prevention", "error", err)
	}
}
