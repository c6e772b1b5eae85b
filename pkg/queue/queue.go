/*
Package queue implements the delayed-event queue: the mechanism that breaks
synchronous feedback cycles in the signal graph by deferring re-entrant work to
the next tick instead of letting it recurse through the current call stack.

Go has no microtask primitive to hook into the way a JavaScript host does, so
this package builds the same guarantee out of one dedicated drain goroutine: a
thunk enqueued while the queue is empty wakes the drain goroutine; the drain
goroutine runs exactly the thunks that were present at the start of its pass,
in FIFO order, and anything enqueued mid-pass waits for the next wake rather
than running inline. That is the Go analogue of "runs after the current
synchronous stack unwinds, strictly before any later-scheduled work".
*/
package queue

import "sync"

// Delayed is a single FIFO of pending one-shot thunks, fair by insertion
// order. The zero value is not usable; construct one with New.
type Delayed struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
	started bool
}

// New constructs a ready-to-use delayed queue and starts its drain goroutine.
func New() *Delayed {
	d := &Delayed{
		wake: make(chan struct{}, 1),
	}
	d.started = true
	go d.run()
	return d
}

// Enqueue appends fn to the queue. If the queue was empty, a single drain
// tick is scheduled; if a drain is already scheduled or running, fn simply
// joins the pending slice and is picked up by the next snapshot the drain
// goroutine takes (its own pass, never the one currently in flight).
func (d *Delayed) Enqueue(fn func()) {
	if fn == nil {
		return
	}
	d.mu.Lock()
	d.pending = append(d.pending, fn)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
		// A wake is already pending; the drain goroutine will see fn on its
		// next pass regardless.
	}
}

// Depth reports the number of thunks currently waiting to run. Exposed for
// introspection/metrics, not for control flow.
func (d *Delayed) Depth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *Delayed) run() {
	for range d.wake {
		batch := d.takeSnapshot()
		for _, fn := range batch {
			fn()
		}
	}
}

// takeSnapshot atomically removes and returns every thunk present right now,
// i.e. the length of the queue at the start of this drain pass. Thunks
// enqueued by fn() while running are appended to d.pending and left for a
// fresh tick — Enqueue re-arms d.wake for them, so run's outer loop picks
// them up on its next pass rather than this one re-snapshotting mid-drain.
func (d *Delayed) takeSnapshot() []func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) == 0 {
		return nil
	}
	batch := d.pending
	d.pending = nil
	return batch
}

// WrapDelayed returns a channel that, for every value read from in, enqueues a
// one-shot thunk on d and emits the value downstream only when that thunk
// fires. The store uses this to route re-entrant dispatch inside a cyclic
// chain through a tick boundary so the reentrant unwind completes first.
func WrapDelayed(d *Delayed, in <-chan any) <-chan any {
	out := make(chan any)
	go func() {
		defer close(out)
		for v := range in {
			v := v
			done := make(chan struct{})
			d.Enqueue(func() {
				out <- v
				close(done)
			})
			<-done
		}
	}()
	return out
}
