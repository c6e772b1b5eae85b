package store

import (
	"context"

	"github.com/cuemby/signalcore/pkg/id"
	"github.com/cuemby/signalcore/pkg/opt"
	"github.com/cuemby/signalcore/pkg/subject"
)

// AddDerivedState registers a behavior identifier backed directly by an
// arbitrary source rather than a reducer fold — the signals-factory layer's
// escape hatch for behaviors computed from other behaviors/events (map,
// combineLatest and friends) instead of accumulated from dispatched events.
// initial, if present, seeds the hub's replay cache so subscribers see a
// value before start's channel has produced one.
func AddDerivedState[T any](s *Store, name string, kind SourceLife, start func(context.Context) <-chan T, initial opt.Optional[T]) id.ID[T] {
	did := id.DerivedID[T](name)
	hub := s.hubFor(did.Raw())
	if v, ok := initial.Get(); ok {
		hub.SeedReplay(v)
	}
	sourceKind := subject.SourceLazy
	if kind == NonLazy {
		sourceKind = subject.SourceStateful
	}
	_ = hub.AddSource("derived", sourceKind, adaptTyped(start))
	return did
}

// SourceLife selects whether a behavior's source runs only while subscribed
// (Lazy) or continuously regardless of subscribers (NonLazy) — the same
// distinction subject.SourceKind makes, exposed at the store's typed
// boundary under the vocabulary the signals-factory layer uses.
type SourceLife int

const (
	Lazy SourceLife = iota
	NonLazy
)

// adaptTyped lifts a typed T-channel source into the erased subject.Item
// channel a Hub source expects.
func adaptTyped[T any](start func(context.Context) <-chan T) func(context.Context) <-chan subject.Item {
	return func(ctx context.Context) <-chan subject.Item {
		in := start(ctx)
		out := make(chan subject.Item, 1)
		go func() {
			defer close(out)
			for {
				select {
				case <-ctx.Done():
					return
				case v, ok := <-in:
					if !ok {
						select {
						case out <- subject.Item{Done: true}:
						case <-ctx.Done():
						}
						return
					}
					select {
					case out <- subject.Item{Val: v}:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
		return out
	}
}

// AddBehavior registers an externally-observable behavior identifier backed
// by start, with the given laziness discipline. It is the general form
// AddLazyBehavior/AddNonLazyBehavior wrap; used directly when the caller
// already has a SourceLife value in hand (e.g. forwarded from a
// signals-factory's own configuration).
func AddBehavior[T any](s *Store, name string, life SourceLife, start func(context.Context) <-chan T, initial opt.Optional[T]) id.ID[T] {
	return AddDerivedState(s, name, life, start, initial)
}

// AddLazyBehavior registers a behavior whose source runs only while it has
// at least one external subscriber.
func AddLazyBehavior[T any](s *Store, name string, start func(context.Context) <-chan T, initial opt.Optional[T]) id.ID[T] {
	return AddBehavior(s, name, Lazy, start, initial)
}

// AddNonLazyBehavior registers a behavior whose source runs continuously,
// independent of subscribers — used for behaviors whose side effects (e.g.
// an invalidation token generator) must keep running even while nothing is
// currently watching them.
func AddNonLazyBehavior[T any](s *Store, name string, start func(context.Context) <-chan T, initial opt.Optional[T]) id.ID[T] {
	return AddBehavior(s, name, NonLazy, start, initial)
}

// GetBehavior attaches an external subscriber to a behavior identifier,
// returning a typed channel of its values (replaying the current value
// first, if any) and an unsubscribe function.
func GetBehavior[T any](s *Store, bid id.ID[T]) (<-chan T, func()) {
	hub := s.hubFor(bid.Raw())
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
