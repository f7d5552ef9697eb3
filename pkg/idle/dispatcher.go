package idle

import "sync"

// Dispatcher runs functions on a serialized delivery context, such as a UI
// thread. Post must not block for long.
type Dispatcher interface {
	Post(fn func())
}

// SerialDispatcher delivers posted functions in order on one goroutine.
type SerialDispatcher struct {
	mu     sync.Mutex
	queue  chan func()
	done   chan struct{}
	closed bool
}

// NewSerialDispatcher starts a dispatcher with the given queue capacity.
func NewSerialDispatcher(capacity int) *SerialDispatcher {
	if capacity < 1 {
		capacity = 1
	}
	d := &SerialDispatcher{
		queue: make(chan func(), capacity),
		done:  make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *SerialDispatcher) loop() {
	defer close(d.done)
	for fn := range d.queue {
		fn()
	}
}

// Post enqueues fn. Functions posted after Close are dropped.
func (d *SerialDispatcher) Post(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.queue <- fn
}

// Close stops accepting work and waits for queued functions to finish.
func (d *SerialDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	<-d.done
}
