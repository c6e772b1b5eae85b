package store

import (
	"context"
	"fmt"

	"github.com/cuemby/signalcore/pkg/id"
	"github.com/cuemby/signalcore/pkg/subject"
)

// AddEventSource registers a lazily-started source feeding event identifier
// eid: start is invoked only while eid has at least one external subscriber,
// and stopped (its context cancelled) once the last one detaches.
func AddEventSource[T any](s *Store, eid id.ID[T], name string, start func(context.Context) <-chan T) error {
	hub := s.hubFor(eid.Raw())
	return hub.AddSource(name, subject.SourceLazy, adaptTyped(start))
}

// RemoveEventSource detaches a previously added named source from an event
// identifier.
func RemoveEventSource(s *Store, eid id.Identifier, name string) error {
	hub := s.existingHub(eid.Raw())
	if hub == nil {
		return fmt.Errorf("store: RemoveEventSource: %w: %s", ErrMissingSource, eid)
	}
	return hub.RemoveSource(name)
}

// GetEventStream attaches an external subscriber to an event identifier,
// returning a typed channel (no replay — only values emitted after
// subscribing) and an unsubscribe function.
func GetEventStream[T any](s *Store, eid id.ID[T]) (<-chan T, func()) {
	hub := s.hubFor(eid.Raw())
	raw, cancel := hub.Subscribe()
	out := make(chan T, 32)
	go func() {
		defer close(out)
		for v := range raw {
			out <- v.(T)
		}
	}()
	return out, cancel
}

// GetTypedEventStream is GetEventStream under the name the factory layer
// uses when it wants to make explicit that eid denotes a tagged member of a
// typed-event-source fan-out rather than a plain, independently-sourced
// event. Behaviourally identical.
func GetTypedEventStream[T any](s *Store, eid id.ID[T]) (<-chan T, func()) {
	return GetEventStream(s, eid)
}

// TaggedEvent is one value produced by a multiplexed upstream source
// together with the identifier of the single event it targets.
type TaggedEvent struct {
	Target  id.RawID
	Payload any
}

// AddTypedEventSource subscribes once to start's upstream channel and, for
// every TaggedEvent it produces, atomically delivers Payload to whichever of
// targets has the matching Target — no other target observes that value.
// Each value is queued on its target's own buffered channel (64 slots) before
// the next upstream value is read, so every target sees its values in
// upstream order; deliveries to different targets are not synchronized
// against each other. This is how one multi-shaped
// upstream (e.g. a WebSocket frame source tagged by message kind) feeds many
// independently-subscribed event identifiers without duplicating traffic
// across them.
//
// AddNTypedEventSource is the same operation under the name used when the
// caller is thinking of it as "N events sharing one source" rather than "one
// source, multiplexed".
func AddTypedEventSource(s *Store, start func(context.Context) <-chan TaggedEvent, targets ...id.Identifier) error {
	if len(targets) == 0 {
		return fmt.Errorf("store: AddTypedEventSource: no targets")
	}
	targetChans := make(map[id.RawID]chan subject.Item, len(targets))
	for _, t := range targets {
		targetChans[t.Raw()] = make(chan subject.Item, 64)
	}

	ctx, cancel := context.WithCancel(context.Background())
	upstream := start(ctx)
	go func() {
		defer func() {
			cancel()
			for _, ch := range targetChans {
				close(ch)
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-upstream:
				if !ok {
					return
				}
				ch, known := targetChans[ev.Target]
				if !known {
					continue
				}
				select {
				case ch <- subject.Item{Val: ev.Payload}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	name := fmt.Sprintf("typed-mux-%p", upstream)
	for _, t := range targets {
		tch := targetChans[t.Raw()]
		hub := s.hubFor(t.Raw())
		if err := hub.AddSource(name, subject.SourceStateful, func(context.Context) <-chan subject.Item { return tch }); err != nil {
			cancel()
			return err
		}
	}
	return nil
}

// AddNTypedEventSource is an alias for AddTypedEventSource.
func AddNTypedEventSource(s *Store, start func(context.Context) <-chan TaggedEvent, targets ...id.Identifier) error {
	return AddTypedEventSource(s, start, targets...)
}
