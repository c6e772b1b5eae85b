package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/signalcore/pkg/id"
	"github.com/cuemby/signalcore/pkg/subject"
)

// stateFold is the single-goroutine fold machine backing one root-state
// identifier. It serializes every reducer application through a command
// channel — exactly one apply in flight at a time — and broadcasts the
// resulting state to every currently-attached subscriber channel, which are
// themselves just the per-activation outputs of the stateful "fold" source
// registered on the state's behavior hub.
//
// A reducer that panics errors only this single event: the panic is
// recovered, logged, and the fold keeps its prior state, matching the design
// note that a reducer exception discards the event that triggered it rather
// than tearing down the whole state.
type stateFold struct {
	log Logger

	applyCh chan func(old any) any

	mu          sync.Mutex
	state       any
	subscribers map[uint64]chan subject.Item
	nextSubID   uint64

	reducersMu sync.Mutex
	reducers   map[id.RawID]context.CancelFunc
}

func newStateFold(initial any, log Logger) *stateFold {
	f := &stateFold{
		log:         log,
		applyCh:     make(chan func(old any) any, 64),
		state:       initial,
		subscribers: make(map[uint64]chan subject.Item),
		reducers:    make(map[id.RawID]context.CancelFunc),
	}
	go f.run()
	return f
}

func (f *stateFold) run() {
	for apply := range f.applyCh {
		f.applyOne(apply)
	}
}

func (f *stateFold) applyOne(apply func(old any) any) {
	defer func() {
		if r := recover(); r != nil {
			f.log.Warn("reducer panicked, discarding event", "err", fmt.Sprintf("%v", r))
		}
	}()
	next := apply(f.state)
	f.state = next
	f.broadcast(next)
}

func (f *stateFold) broadcast(v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subscribers {
		select {
		case ch <- subject.Item{Val: v}:
		default:
		}
	}
}

// subscribe backs the fold's stateful source: every activation gets a fresh
// channel of future state values, torn down when ctx is cancelled. The hub
// itself is responsible for replaying the current value to late subscribers,
// so subscribe need not (and does not) push the current state immediately.
func (f *stateFold) subscribe(ctx context.Context) <-chan subject.Item {
	out := make(chan subject.Item, 16)
	f.mu.Lock()
	subID := f.nextSubID
	f.nextSubID++
	f.subscribers[subID] = out
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subscribers, subID)
		f.mu.Unlock()
	}()
	return out
}

// addReducer wires upstream, an already-subscribed event channel, into the
// fold: every value received is applied through fn and the result becomes
// the fold's new state. Returns a cancel func used by RemoveReducer.
func (f *stateFold) addReducer(upstream <-chan any, fn func(old, event any) any) context.CancelFunc {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-upstream:
				if !ok {
					return
				}
				ev := ev
				select {
				case f.applyCh <- func(old any) any { return fn(old, ev) }:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return cancel
}

// AddState registers a root-state behavior with initial value initial. The
// returned identifier already has a live hub with a stateful "fold" source,
// so GetBehavior on it is immediately usable — replaying initial to any
// subscriber until the first reducer fires.
func AddState[T any](s *Store, name string, initial T) id.ID[T] {
	sid := id.StateID[T](name)
	s.installFold(sid.Raw(), initial)
	return sid
}

func (s *Store) installFold(raw id.RawID, initial any) *stateFold {
	s.mu.Lock()
	fold, ok := s.folds[raw]
	if !ok {
		fold = newStateFold(initial, s.log)
		s.folds[raw] = fold
	}
	s.mu.Unlock()

	hub := s.hubFor(raw)
	_ = hub.AddSource("fold", subject.SourceStateful, func(ctx context.Context) <-chan subject.Item {
		return fold.subscribe(ctx)
	})
	hub.SeedReplay(initial)
	return fold
}

// AddReducer attaches fn as a reducer from event eid onto state sid: every
// value dispatched on eid folds into sid's state via fn(current, event).
// Multiple reducers may be attached to the same state; they apply in the
// order their triggering events actually arrive, serialized by the state's
// single fold goroutine.
func AddReducer[S, E any](s *Store, sid id.ID[S], eid id.ID[E], fn func(S, E) S) error {
	s.mu.Lock()
	fold, ok := s.folds[sid.Raw()]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("store: AddReducer: %w: %s", ErrMissingSource, sid)
	}

	fold.reducersMu.Lock()
	if _, exists := fold.reducers[eid.Raw()]; exists {
		fold.reducersMu.Unlock()
		return fmt.Errorf("store: AddReducer: %w: %s already wired to %s", ErrDuplicateSource, eid, sid)
	}
	fold.reducersMu.Unlock()

	upstream, _ := s.subscribeRaw(eid.Raw())
	cancel := fold.addReducer(upstream, func(old, event any) any {
		return fn(old.(S), event.(E))
	})

	fold.reducersMu.Lock()
	fold.reducers[eid.Raw()] = cancel
	fold.reducersMu.Unlock()
	return nil
}

// RemoveReducer detaches a previously attached reducer. The state's value is
// left exactly as it was; with no reducer left feeding it, it simply stops
// changing.
func RemoveReducer[S, E any](s *Store, sid id.ID[S], eid id.ID[E]) error {
	s.mu.Lock()
	fold, ok := s.folds[sid.Raw()]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("store: RemoveReducer: %w: %s", ErrMissingSource, sid)
	}
	fold.reducersMu.Lock()
	cancel, exists := fold.reducers[eid.Raw()]
	if exists {
		delete(fold.reducers, eid.Raw())
	}
	fold.reducersMu.Unlock()
	if !exists {
		return fmt.Errorf("store: RemoveReducer: %w: %s not wired to %s", ErrMissingSource, eid, sid)
	}
	cancel()
	return nil
}

// subscribeRaw attaches a subscriber for internal plumbing (reducer wiring)
// to the hub for raw. It delegates to Subscribe, so the subscription counts
// toward the hub's external-subscriber refcount like any other and keeps the
// hub's lazy sources running; lazy sources on event hubs are rare (events are
// normally externally dispatched, a stateful "dispatch" source), so Hub has
// no second, uncounted subscription path.
func (s *Store) subscribeRaw(raw id.RawID) (<-chan any, func()) {
	hub := s.hubFor(raw)
	return hub.Subscribe()
}
