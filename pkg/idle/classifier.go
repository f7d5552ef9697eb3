package idle

import (
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/Veraticus/awakeguard/pkg/inputhook"
	"github.com/Veraticus/awakeguard/pkg/interfaces"
	"github.com/Veraticus/awakeguard/pkg/types"
)

// Transition is a change of idle state.
type Transition int

const (
	TransitionNone Transition = iota
	IdleStarted
	IdleStopped
)

func (t Transition) String() string {
	switch t {
	case IdleStarted:
		return "idle-started"
	case IdleStopped:
		return "idle-stopped"
	default:
		return "none"
	}
}

// Event is delivered to the classifier handler on every transition.
type Event struct {
	Transition Transition
	Elapsed    time.Duration
}

// Handler receives transition events.
type Handler func(Event)

// WatermarkTracker is the filtered input source used when injected input
// must be ignored. *inputhook.Tracker implements it.
type WatermarkTracker interface {
	Start(seed time.Duration) error
	Stop()
	Close()
	IdleElapsed(allowInjectedWake bool) (time.Duration, bool)
	Running() bool
	Failed() bool
}

// Classifier polls an idle source and turns elapsed idle time into debounced
// Active/Idle transitions.
type Classifier struct {
	mu sync.Mutex

	pollInterval time.Duration
	tolerance    time.Duration
	threshold    time.Duration
	start        time.Duration
	stop         time.Duration

	source     interfaces.IdleSource
	tracker    WatermarkTracker
	handler    Handler
	dispatcher Dispatcher
	logger     *slog.Logger

	ignoreInjected bool
	running        bool
	idle           bool
	closed         bool
	gen            uint64
	stopCh         chan struct{}
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithPollInterval sets the sampling period.
func WithPollInterval(d time.Duration) Option {
	return func(c *Classifier) {
		c.pollInterval = d
	}
}

// WithDebounceTolerance sets the hysteresis tolerance.
func WithDebounceTolerance(d time.Duration) Option {
	return func(c *Classifier) {
		c.tolerance = d
	}
}

// WithSource sets the unfiltered OS idle source.
func WithSource(s interfaces.IdleSource) Option {
	return func(c *Classifier) {
		c.source = s
	}
}

// WithTracker sets the filtered watermark tracker.
func WithTracker(t WatermarkTracker) Option {
	return func(c *Classifier) {
		c.tracker = t
	}
}

// WithDispatcher delivers events on d instead of the polling goroutine.
func WithDispatcher(d Dispatcher) Option {
	return func(c *Classifier) {
		c.dispatcher = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Classifier) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClassifier creates a stopped classifier in the Active state.
func NewClassifier(threshold time.Duration, handler Handler, opts ...Option) (*Classifier, error) {
	c := &Classifier{
		pollInterval: DefaultPollInterval,
		tolerance:    DefaultDebounceTolerance,
		threshold:    threshold,
		handler:      handler,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if threshold <= 0 {
		return nil, errors.Wrapf(types.ErrInvalidConfiguration, "idle threshold %v must be positive", threshold)
	}
	if c.pollInterval <= 0 {
		return nil, errors.Wrapf(types.ErrInvalidConfiguration, "poll interval %v must be positive", c.pollInterval)
	}
	if c.tolerance < 0 {
		return nil, errors.Wrapf(types.ErrInvalidConfiguration, "debounce tolerance %v must not be negative", c.tolerance)
	}

	if c.source == nil {
		c.source = NewSystemSource()
	}
	if c.tracker == nil {
		c.tracker = inputhook.NewTracker(inputhook.WithLogger(c.logger))
	}
	c.start, c.stop = Boundaries(c.threshold, c.tolerance)
	return c, nil
}

// Start begins polling. The first sample is taken immediately.
func (c *Classifier) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return types.ErrClosed
	}
	if c.running {
		return nil
	}

	c.running = true
	if c.ignoreInjected {
		c.startTrackerLocked()
	}

	c.gen++
	c.stopCh = make(chan struct{})
	go c.poll(c.gen, c.pollInterval, c.stopCh)
	return nil
}

// Stop halts polling and resets the state to Active.
func (c *Classifier) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || !c.running {
		return
	}
	c.stopLocked()
}

func (c *Classifier) stopLocked() {
	c.running = false
	c.idle = false
	c.gen++
	if c.stopCh != nil {
		close(c.stopCh)
		c.stopCh = nil
	}
	c.tracker.Stop()
}

// UpdateIdleThreshold recomputes the hysteresis band for a new threshold.
func (c *Classifier) UpdateIdleThreshold(threshold time.Duration) error {
	if threshold <= 0 {
		return errors.Wrapf(types.ErrInvalidConfiguration, "idle threshold %v must be positive", threshold)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return types.ErrClosed
	}
	c.threshold = threshold
	c.start, c.stop = Boundaries(threshold, c.tolerance)
	return nil
}

// UpdateIgnoreInjectedInput switches between the filtered tracker and the
// unfiltered OS source.
func (c *Classifier) UpdateIgnoreInjectedInput(ignore bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return types.ErrClosed
	}
	if c.ignoreInjected == ignore {
		return nil
	}
	c.ignoreInjected = ignore
	if !c.running {
		return nil
	}

	if ignore {
		c.startTrackerLocked()
	} else {
		c.tracker.Stop()
	}
	return nil
}

// startTrackerLocked seeds the tracker with the current unfiltered idle time
// so that enabling the filter does not reset the idle clock.
func (c *Classifier) startTrackerLocked() {
	seed, ok := c.source.IdleElapsed()
	if !ok {
		seed = 0
	}
	if err := c.tracker.Start(seed); err != nil {
		c.logger.Warn("failed to start input tracker", "error", err)
	}
}

// IsIdle reports the current classification.
func (c *Classifier) IsIdle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idle
}

// Threshold returns the current threshold.
func (c *Classifier) Threshold() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threshold
}

// IdleElapsed returns the reading the next sample would use.
func (c *Classifier) IdleElapsed() (time.Duration, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, false, types.ErrClosed
	}
	elapsed, ok := c.idleElapsedLocked()
	return elapsed, ok, nil
}

// Detach drops the handler; later transitions are not delivered.
func (c *Classifier) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = nil
}

// Close stops the classifier permanently.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	if c.running {
		c.stopLocked()
	}
	c.closed = true
	c.tracker.Close()
	return nil
}

func (c *Classifier) poll(gen uint64, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.tick(gen)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.tick(gen)
		}
	}
}

// tick takes one sample and delivers at most one transition.
func (c *Classifier) tick(gen uint64) {
	c.mu.Lock()
	if c.closed || !c.running || c.gen != gen {
		c.mu.Unlock()
		return
	}

	elapsed, ok := c.idleElapsedLocked()
	if !ok {
		c.mu.Unlock()
		return
	}

	transition := TransitionNone
	switch {
	case !c.idle && elapsed >= c.start:
		c.idle = true
		transition = IdleStarted
	case c.idle && elapsed <= c.stop:
		c.idle = false
		transition = IdleStopped
	}
	dispatcher := c.dispatcher
	c.mu.Unlock()

	if transition == TransitionNone {
		return
	}

	c.logger.Debug("idle transition", "transition", transition, "elapsed", elapsed)
	ev := Event{Transition: transition, Elapsed: elapsed}
	if dispatcher != nil {
		dispatcher.Post(func() { c.deliver(ev) })
		return
	}
	c.deliver(ev)
}

func (c *Classifier) deliver(ev Event) {
	c.mu.Lock()
	handler := c.handler
	closed := c.closed
	c.mu.Unlock()

	if closed || handler == nil {
		return
	}
	handler(ev)
}

// idleElapsedLocked picks the reading for a sample. Injected interactions
// only count as waking the user while the state is Idle. While the tracker
// is starting up there is no reading at all rather than an unfiltered one.
func (c *Classifier) idleElapsedLocked() (time.Duration, bool) {
	if c.ignoreInjected {
		if elapsed, ok := c.tracker.IdleElapsed(c.idle); ok {
			return elapsed, true
		}
		if c.tracker.Running() && !c.tracker.Failed() {
			return 0, false
		}
	}
	return c.source.IdleElapsed()
}
