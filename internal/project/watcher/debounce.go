package watcher

import (
	"sync"
	"time"
)

// DebouncedWatcher wraps a Watcher and delivers at most one event per
// path per quiet period. Operations within the window are coalesced:
// a removal followed by a create (an atomic replace) becomes a write,
// and a file created and removed within the window is not reported.
type DebouncedWatcher struct {
	inner Watcher
	delay time.Duration

	mu       sync.Mutex
	pending  map[string]*pendingEvent
	events   chan Event
	errors   chan error
	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

type pendingEvent struct {
	event Event
	timer *time.Timer
}

// NewDebouncedWatcher creates a debounced watcher wrapper.
func NewDebouncedWatcher(inner Watcher, delay time.Duration) *DebouncedWatcher {
	if delay <= 0 {
		delay = DefaultConfig().DebounceDelay
	}

	dw := &DebouncedWatcher{
		inner:   inner,
		delay:   delay,
		pending: make(map[string]*pendingEvent),
		events:  make(chan Event, 256),
		errors:  make(chan error, 64),
		closeCh: make(chan struct{}),
	}

	dw.closedWg.Add(1)
	go dw.processLoop()

	return dw
}

// Watch starts watching a path.
func (dw *DebouncedWatcher) Watch(path string) error {
	return dw.inner.Watch(path)
}

// WatchRecursive starts watching a directory recursively.
func (dw *DebouncedWatcher) WatchRecursive(path string) error {
	return dw.inner.WatchRecursive(path)
}

// Unwatch stops watching a path.
func (dw *DebouncedWatcher) Unwatch(path string) error {
	return dw.inner.Unwatch(path)
}

// Events returns the debounced event channel.
func (dw *DebouncedWatcher) Events() <-chan Event {
	return dw.events
}

// Errors returns the error channel.
func (dw *DebouncedWatcher) Errors() <-chan error {
	return dw.errors
}

// Close stops the debounced watcher and the inner watcher. Pending
// events are discarded.
func (dw *DebouncedWatcher) Close() error {
	dw.mu.Lock()
	if dw.closed {
		dw.mu.Unlock()
		return nil
	}
	dw.closed = true
	close(dw.closeCh)

	for path, p := range dw.pending {
		p.timer.Stop()
		delete(dw.pending, path)
	}
	dw.mu.Unlock()

	err := dw.inner.Close()
	dw.closedWg.Wait()

	// Timers already past Stop may still be sending; take the lock so
	// fireEvent observes closed before the channels go away.
	dw.mu.Lock()
	close(dw.events)
	close(dw.errors)
	dw.mu.Unlock()

	return err
}

// Stats returns the inner watcher's statistics with the pending count
// replaced by this watcher's.
func (dw *DebouncedWatcher) Stats() Stats {
	dw.mu.Lock()
	pendingCount := len(dw.pending)
	dw.mu.Unlock()

	stats := dw.inner.Stats()
	stats.PendingEvents = pendingCount
	return stats
}

func (dw *DebouncedWatcher) processLoop() {
	defer dw.closedWg.Done()

	events, errs := dw.inner.Events(), dw.inner.Errors()
	for {
		select {
		case <-dw.closeCh:
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			dw.handleEvent(event)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			dw.forwardError(err)
		}
	}
}

// coalesce merges the pending op with a newer one. keep is false when
// the path should not be reported at all.
func coalesce(prev, next Op) (op Op, keep bool) {
	switch {
	case next.Gone():
		if prev.Has(OpCreate) && !prev.Gone() {
			return 0, false
		}
		return next, true
	case prev.Gone() && next.Has(OpCreate):
		return OpWrite, true
	default:
		return prev | next, true
	}
}

func (dw *DebouncedWatcher) handleEvent(event Event) {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if dw.closed {
		return
	}

	if p, exists := dw.pending[event.Path]; exists {
		op, keep := coalesce(p.event.Op, event.Op)
		if !keep {
			p.timer.Stop()
			delete(dw.pending, event.Path)
			return
		}
		p.event.Op = op
		p.event.Time = event.Time
		p.timer.Reset(dw.delay)
		return
	}

	path := event.Path
	p := &pendingEvent{event: event}
	p.timer = time.AfterFunc(dw.delay, func() {
		dw.fireEvent(path)
	})
	dw.pending[path] = p
}

func (dw *DebouncedWatcher) fireEvent(path string) {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	p, exists := dw.pending[path]
	if !exists || dw.closed {
		return
	}
	delete(dw.pending, path)

	select {
	case dw.events <- p.event:
	default:
		// Channel full, drop event
	}
}

func (dw *DebouncedWatcher) forwardError(err error) {
	select {
	case dw.errors <- err:
	case <-dw.closeCh:
	default:
	}
}

// Flush immediately fires all pending events.
func (dw *DebouncedWatcher) Flush() {
	dw.mu.Lock()
	paths := make([]string, 0, len(dw.pending))
	for path, p := range dw.pending {
		p.timer.Stop()
		paths = append(paths, path)
	}
	dw.mu.Unlock()

	for _, path := range paths {
		dw.fireEvent(path)
	}
}

// PendingCount returns the number of pending events.
func (dw *DebouncedWatcher) PendingCount() int {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	return len(dw.pending)
}

// Ensure DebouncedWatcher implements Watcher.
var _ Watcher = (*DebouncedWatcher)(nil)
