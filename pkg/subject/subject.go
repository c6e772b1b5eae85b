/*
Package subject implements ControlledSubject, the per-identifier multiplexer
the store kernel builds every behavior and event on top of. In this codebase it
is called a Hub: a single goroutine that owns all mutable state for one
identifier and serializes every operation against it through a command
channel: a run loop reading one input channel, generalised from "one broker
for the whole process" to "one hub per identifier".

A Hub multiplexes zero or more named sources — lazy (subscribed only while the
hub has external subscribers) or stateful (always subscribed) — into a single
broadcast point. Behavior hubs additionally cache and replay the last value to
new subscribers; event hubs never do.
*/
package subject

import (
	"context"
	"errors"
	"sync"
)

// ErrDuplicateSource is returned by AddSource when name already names a
// registered source on this hub.
var ErrDuplicateSource = errors.New("subject: duplicate source name")

// ErrUnknownSource is returned by RemoveSource when name is not registered.
var ErrUnknownSource = errors.New("subject: unknown source name")

// SourceKind distinguishes lazily-subscribed sources from always-subscribed
// (stateful) ones.
type SourceKind int

const (
	SourceLazy SourceKind = iota
	SourceStateful
)

// Item is one value emitted by a source's channel. Exactly one of Val being
// meaningful, Err != nil, or Done == true applies to a given Item; Err and
// Done both mark the channel's logical end and cause the owning hub to
// rebuild rather than propagate a terminal signal to subscribers.
type Item struct {
	Val  any
	Err  error
	Done bool

	// Ack, if non-nil, is closed once this Item's value has been handed to
	// the hub's broadcast (deliver) step — used by store.Dispatch to report
	// that a dispatched value reached every subscriber already attached at
	// that moment.
	Ack chan struct{}
}

// Logger is the minimal structured-logging surface subject needs; satisfied
// by reactorlog's component loggers without this package importing zerolog
// directly.
type Logger interface {
	Debug(msg string, kv ...any)
	Warn(msg string, kv ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}

// Hub is the runtime object backing one identifier's ControlledSubject.
type Hub struct {
	name   string
	replay bool
	log    Logger

	cmds chan func(*hubState)
	stop chan struct{}
}

// Option configures a Hub at construction time.
type Option func(*Hub)

// WithLogger attaches a structured logger; defaults to a no-op logger.
func WithLogger(l Logger) Option {
	return func(h *Hub) { h.log = l }
}

// NewBehaviorHub constructs a hub with share-with-replay-of-1 semantics: a
// newly attaching subscriber synchronously receives the last emitted value,
// if any, before any further upstream emission.
func NewBehaviorHub(name string, opts ...Option) *Hub {
	return newHub(name, true, opts)
}

// NewEventHub constructs a hub with plain share semantics: no replay: a
// subscriber observes only values emitted after it attached.
func NewEventHub(name string, opts ...Option) *Hub {
	return newHub(name, false, opts)
}

func newHub(name string, replay bool, opts []Option) *Hub {
	h := &Hub{
		name:   name,
		replay: replay,
		log:    nopLogger{},
		cmds:   make(chan func(*hubState), 64),
		stop:   make(chan struct{}),
	}
	for _, o := range opts {
		o(h)
	}
	st := &hubState{
		replay:          replay,
		subs:            make(map[uint64]*subEntry),
		lazySources:     make(map[string]*sourceEntry),
		statefulSources: make(map[string]*sourceEntry),
	}
	go h.run(st)
	return h
}

// hubState holds everything only the owning goroutine may touch.
type hubState struct {
	replay    bool
	hasValue  bool
	lastValue any

	subs      map[uint64]*subEntry
	nextSubID uint64
	extRefs   int

	lazySources     map[string]*sourceEntry
	statefulSources map[string]*sourceEntry
}

type subEntry struct {
	ch chan any
}

type sourceEntry struct {
	name   string
	kind   SourceKind
	start  func(context.Context) <-chan Item
	cancel context.CancelFunc
	active bool
}

func (h *Hub) run(st *hubState) {
	for {
		select {
		case cmd := <-h.cmds:
			cmd(st)
		case <-h.stop:
			h.teardownAll(st)
			return
		}
	}
}

// exec submits fn to the hub's owning goroutine and blocks until it has run,
// used whenever the caller needs a synchronous result.
func (h *Hub) exec(fn func(*hubState)) {
	done := make(chan struct{})
	h.cmds <- func(st *hubState) {
		fn(st)
		close(done)
	}
	<-done
}

// Subscribe attaches a new external subscriber. The returned channel receives
// every value broadcast from this point on (plus, for a replaying behavior
// hub with a cached value, that value immediately). The returned function
// detaches the subscriber; it is safe to call more than once.
func (h *Hub) Subscribe() (<-chan any, func()) {
	var id uint64
	var ch chan any
	h.exec(func(st *hubState) {
		id = st.nextSubID
		st.nextSubID++
		ch = make(chan any, 32)
		st.subs[id] = &subEntry{ch: ch}
		st.extRefs++
		if st.extRefs == 1 {
			h.startSources(st, st.lazySources)
		}
		if st.replay && st.hasValue {
			select {
			case ch <- st.lastValue:
			default:
			}
		}
	})

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.cmds <- func(st *hubState) {
				h.removeSubscriberLocked(st, id)
			}
		})
	}
	return ch, cancel
}

func (h *Hub) removeSubscriberLocked(st *hubState, id uint64) {
	entry, ok := st.subs[id]
	if !ok {
		return
	}
	delete(st.subs, id)
	close(entry.ch)
	if st.extRefs > 0 {
		st.extRefs--
	}
	if st.extRefs == 0 {
		h.stopSources(st, st.lazySources)
	}
}

// AddSource registers a named source. A stateful source is subscribed
// immediately and stays subscribed regardless of external subscriber count; a
// lazy source is subscribed only while ExternalSubscriberCount() > 0.
func (h *Hub) AddSource(name string, kind SourceKind, start func(context.Context) <-chan Item) error {
	var outErr error
	h.exec(func(st *hubState) {
		if _, exists := st.lazySources[name]; exists {
			outErr = ErrDuplicateSource
			return
		}
		if _, exists := st.statefulSources[name]; exists {
			outErr = ErrDuplicateSource
			return
		}
		entry := &sourceEntry{name: name, kind: kind, start: start}
		target := st.lazySources
		if kind == SourceStateful {
			target = st.statefulSources
		}
		target[name] = entry
		if kind == SourceStateful || st.extRefs > 0 {
			h.startOne(st, entry)
		}
	})
	return outErr
}

// RemoveSource unsubscribes and forgets the named source.
func (h *Hub) RemoveSource(name string) error {
	var outErr error
	h.exec(func(st *hubState) {
		if entry, ok := st.lazySources[name]; ok {
			h.stopOne(entry)
			delete(st.lazySources, name)
			return
		}
		if entry, ok := st.statefulSources[name]; ok {
			h.stopOne(entry)
			delete(st.statefulSources, name)
			return
		}
		outErr = ErrUnknownSource
	})
	return outErr
}

func (h *Hub) startSources(st *hubState, set map[string]*sourceEntry) {
	for _, entry := range set {
		h.startOne(st, entry)
	}
}

func (h *Hub) stopSources(st *hubState, set map[string]*sourceEntry) {
	for _, entry := range set {
		h.stopOne(entry)
	}
}

func (h *Hub) startOne(st *hubState, entry *sourceEntry) {
	if entry.active {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	entry.cancel = cancel
	entry.active = true
	ch := entry.start(ctx)
	go h.forward(ctx, entry.name, ch)
}

func (h *Hub) stopOne(entry *sourceEntry) {
	if !entry.active {
		return
	}
	entry.active = false
	if entry.cancel != nil {
		entry.cancel()
	}
}

// forward pumps one source's channel into the hub's command loop until the
// channel closes, errors, signals completion, or ctx is cancelled.
func (h *Hub) forward(ctx context.Context, name string, ch <-chan Item) {
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-ch:
			if !ok {
				h.terminate(name, nil)
				return
			}
			if item.Err != nil {
				h.terminate(name, item.Err)
				return
			}
			if item.Done {
				h.terminate(name, nil)
				return
			}
			val, ack := item.Val, item.Ack
			select {
			case h.cmds <- func(st *hubState) {
				h.deliver(st, val)
				if ack != nil {
					close(ack)
				}
			}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (h *Hub) deliver(st *hubState, val any) {
	if st.replay {
		st.hasValue = true
		st.lastValue = val
	}
	for _, sub := range st.subs {
		select {
		case sub.ch <- val:
		default:
			// Slow subscriber: drop rather than block the hub's single
			// goroutine.
		}
	}
}

// terminate handles a source's error or completion: the terminal signal is
// never forwarded to external subscribers. Instead the hub rebuilds — every
// active source is stopped and every registered source (stateful always,
// lazy only while subscribed) is restarted from its start factory — so later
// subscribers are never poisoned by one source's terminal signal.
func (h *Hub) terminate(name string, err error) {
	h.cmds <- func(st *hubState) {
		if err != nil {
			h.log.Warn("source terminated with error, rebuilding hub", "hub", h.name, "source", name, "err", err)
		} else {
			h.log.Debug("source completed, rebuilding hub", "hub", h.name, "source", name)
		}
		h.stopSources(st, st.lazySources)
		h.stopSources(st, st.statefulSources)
		h.startSources(st, st.statefulSources)
		if st.extRefs > 0 {
			h.startSources(st, st.lazySources)
		}
	}
}

func (h *Hub) teardownAll(st *hubState) {
	h.stopSources(st, st.lazySources)
	h.stopSources(st, st.statefulSources)
	for id, sub := range st.subs {
		close(sub.ch)
		delete(st.subs, id)
	}
}

// Close permanently shuts the hub down, cancelling every source and closing
// every subscriber channel. Used by store teardown (CompleteAllSignals,
// RemoveBehaviorSources).
func (h *Hub) Close() {
	select {
	case <-h.stop:
	default:
		close(h.stop)
	}
}

// ExternalSubscriberCount reports the current external subscriber refcount.
func (h *Hub) ExternalSubscriberCount() int {
	var n int
	h.exec(func(st *hubState) { n = st.extRefs })
	return n
}

// NumberOfSources reports the total count of registered sources (lazy plus
// stateful), used by store.GetNumberOfBehaviorSources/GetNumberOfEventSources.
func (h *Hub) NumberOfSources() int {
	var n int
	h.exec(func(st *hubState) { n = len(st.lazySources) + len(st.statefulSources) })
	return n
}

// SeedReplay sets the hub's cached replay value directly, without going
// through a source. Used by store.AddState/AddDerivedState to make an
// initial value visible to subscribers before any fold or upstream emission
// has happened. A no-op on a non-replaying (event) hub.
func (h *Hub) SeedReplay(v any) {
	h.exec(func(st *hubState) {
		if !st.replay {
			return
		}
		if st.hasValue {
			return
		}
		st.hasValue = true
		st.lastValue = v
	})
}

// LastValue returns the cached replay value, if any. Only meaningful for
// behavior hubs.
func (h *Hub) LastValue() (any, bool) {
	var v any
	var ok bool
	h.exec(func(st *hubState) { v, ok = st.lastValue, st.hasValue })
	return v, ok
}
