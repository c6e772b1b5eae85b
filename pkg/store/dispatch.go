package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/cuemby/signalcore/pkg/id"
	"github.com/cuemby/signalcore/pkg/queue"
	"github.com/cuemby/signalcore/pkg/subject"
)

// dispatchChanFor returns the persistent dispatch channel for raw, creating
// it — and a stateful "dispatch" source forwarding it — on first use. The
// channel outlives any individual hub rebuild: a rebuild only restarts the
// forwarding goroutine reading from it, never the channel itself.
func (s *Store) dispatchChanFor(raw id.RawID) chan subject.Item {
	s.mu.Lock()
	ch, ok := s.dispatch[raw]
	if !ok {
		ch = make(chan subject.Item, 64)
		s.dispatch[raw] = ch
	}
	s.mu.Unlock()

	hub := s.hubFor(raw)
	_ = hub.AddSource("dispatch", subject.SourceStateful, func(context.Context) <-chan subject.Item {
		return ch
	})
	return ch
}

// PendingDispatch is a lazily-resolved dispatch: constructing it with
// Dispatch does not itself deliver anything, mirroring the design note that
// dispatch's effect is observable only once Do is actually awaited/run. This
// lets callers build a dispatch value and decide later (or never) to fire
// it, and lets signals-factory combinators compose dispatches before
// committing to running any of them.
type PendingDispatch struct {
	do func(context.Context) error
}

// Do delivers the dispatch. It resolves once the value has reached the
// event's hub and been broadcast to every subscriber already attached at
// that moment ("every synchronous receiver"); it does not wait for those
// receivers to drain their own channel. If this identifier is already being
// dispatched on (this call is happening re-entrantly, from inside a reducer
// or effect callback that itself runs as a consequence of an in-flight
// dispatch on the same identifier), the send is instead handed to the
// delayed queue and Do returns immediately without waiting for an
// acknowledgement — the cyclic-context guard: a synchronous feedback loop on
// one identifier is broken at the second entry, not the first.
func (p PendingDispatch) Do(ctx context.Context) error {
	return p.do(ctx)
}

// Dispatch builds a PendingDispatch delivering value on event identifier
// eid. Calling Dispatch alone has no observable effect until Do is called.
func Dispatch[T any](s *Store, eid id.ID[T], value T) PendingDispatch {
	raw := eid.Raw()
	return PendingDispatch{do: func(ctx context.Context) error {
		ch := s.dispatchChanFor(raw)

		// A correlation ID purely for log tracing: it tags this dispatch's
		// own "dispatch accepted" or "dispatch deferred" log line. It is not
		// carried in the event payload, and reducer log lines do not include
		// it.
		corrID := uuid.NewString()

		already, done := s.markInFlight(raw)
		if already {
			s.log.Debug("dispatch deferred: cyclic re-entry detected", "event", raw.Name(), "correlation_id", corrID)
			oneShot := make(chan any, 1)
			oneShot <- value
			close(oneShot)
			wrapped := queue.WrapDelayed(s.queue, oneShot)
			go func() {
				for v := range wrapped {
					select {
					case ch <- subject.Item{Val: v}:
					default:
					}
				}
			}()
			return nil
		}
		defer done()
		s.log.Debug("dispatch accepted", "event", raw.Name(), "correlation_id", corrID)

		ack := make(chan struct{})
		select {
		case ch <- subject.Item{Val: value, Ack: ack}:
		case <-ctx.Done():
			return ctx.Err()
		}
		select {
		case <-ack:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}}
}

func (s *Store) markInFlight(raw id.RawID) (already bool, done func()) {
	s.inFlightMu.Lock()
	already = s.inFlight[raw]
	if !already {
		s.inFlight[raw] = true
	}
	s.inFlightMu.Unlock()
	return already, func() {
		s.inFlightMu.Lock()
		delete(s.inFlight, raw)
		s.inFlightMu.Unlock()
	}
}
