/*
Package store implements the signal store kernel: the public surface that
turns identifiers (package id) and ControlledSubjects (package subject) into
addState/addReducer/addDerivedState/addEffect/connect/dispatch — the contract
every signals-factory (package factory) and effect (package effect) is built
against.

A Store owns one subject.Hub per identifier it has seen, created lazily on
first use, plus one stateFold per root-state identifier and one shared
queue.Delayed used to break synchronous feedback cycles. There is no global
mutable state: every Store is an independent namespace, and CreateChildStore
links a new, independent store to a parent so GetParentStore/GetRootStore
can walk back up the chain.
*/
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cuemby/signalcore/pkg/id"
	"github.com/cuemby/signalcore/pkg/queue"
	"github.com/cuemby/signalcore/pkg/subject"
)

// ErrMissingSource is returned when an operation asserts the existence of a
// registration (a reducer, an effect, a hub) that was never added.
var ErrMissingSource = errors.New("store: missing source")

// ErrDuplicateSource is returned when a registration collides with one that
// already exists under the same identifier (and, for reducers, event).
var ErrDuplicateSource = subject.ErrDuplicateSource

// Logger is the structured-logging surface the store needs.
type Logger = subject.Logger

// Store is the signal store kernel.
type Store struct {
	name   string
	log    Logger
	parent *Store

	mu       sync.RWMutex
	hubs     map[id.RawID]*subject.Hub
	folds    map[id.RawID]*stateFold
	dispatch map[id.RawID]chan subject.Item
	effects  map[id.RawID]any

	queue *queue.Delayed

	inFlightMu sync.Mutex
	inFlight   map[id.RawID]bool
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithLogger attaches a structured logger used for diagnostics such as
// reducer panics and source-termination rebuilds.
func WithLogger(l Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithName attaches a debug name used in log lines.
func WithName(name string) Option {
	return func(s *Store) { s.name = name }
}

// New constructs an empty, independent store.
func New(opts ...Option) *Store {
	s := &Store{
		hubs:     make(map[id.RawID]*subject.Hub),
		folds:    make(map[id.RawID]*stateFold),
		dispatch: make(map[id.RawID]chan subject.Item),
		effects:  make(map[id.RawID]any),
		inFlight: make(map[id.RawID]bool),
		queue:    queue.New(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = noopLogger{}
	}
	if s.name == "" {
		s.name = "store"
	}
	return s
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// CreateChildStore builds a new store whose GetParentStore/GetRootStore
// resolve back to s. Child stores are otherwise fully independent
// namespaces — they do not inherit s's hubs.
func (s *Store) CreateChildStore(opts ...Option) *Store {
	child := New(opts...)
	child.parent = s
	if child.log == nil {
		child.log = s.log
	}
	return child
}

// GetParentStore returns the store this one was created from, or nil for a
// root store.
func (s *Store) GetParentStore() *Store { return s.parent }

// GetRootStore walks the parent chain to the top.
func (s *Store) GetRootStore() *Store {
	cur := s
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}

// hubFor returns the hub for raw, creating a behavior or event hub on first
// use according to raw's own kind.
func (s *Store) hubFor(raw id.RawID) *subject.Hub {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.hubs[raw]; ok {
		return h
	}
	var h *subject.Hub
	if raw.Kind() == id.KindEvent {
		h = subject.NewEventHub(fmt.Sprintf("%s", raw.Name()), subject.WithLogger(s.log))
	} else {
		h = subject.NewBehaviorHub(fmt.Sprintf("%s", raw.Name()), subject.WithLogger(s.log))
	}
	s.hubs[raw] = h
	return h
}

// existingHub returns the hub for raw without creating one, or nil.
func (s *Store) existingHub(raw id.RawID) *subject.Hub {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hubs[raw]
}

// IsSubscribed reports whether id currently has at least one external
// subscriber.
func IsSubscribed(s *Store, i id.Identifier) bool {
	h := s.existingHub(i.Raw())
	if h == nil {
		return false
	}
	return h.ExternalSubscriberCount() > 0
}

// GetNumberOfBehaviorSources reports how many sources are registered on a
// behavior identifier.
func GetNumberOfBehaviorSources(s *Store, i id.Identifier) int {
	if !id.IsBehaviorID(i) {
		return 0
	}
	h := s.existingHub(i.Raw())
	if h == nil {
		return 0
	}
	return h.NumberOfSources()
}

// GetNumberOfEventSources reports how many sources are registered on an event
// identifier.
func GetNumberOfEventSources(s *Store, i id.Identifier) int {
	if !id.IsEventID(i) {
		return 0
	}
	h := s.existingHub(i.Raw())
	if h == nil {
		return 0
	}
	return h.NumberOfSources()
}

// RemoveBehaviorSources tears a behavior's hub down entirely and forgets it;
// a subsequent addState/addDerivedState under the same identifier starts
// fresh. Mainly a debug/test primitive.
func RemoveBehaviorSources(s *Store, i id.Identifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.hubs[i.Raw()]; ok {
		h.Close()
		delete(s.hubs, i.Raw())
	}
	delete(s.folds, i.Raw())
}

// CompleteBehavior closes a behavior's hub, completing it for all current
// subscribers, and forgets the hub and its fold — the same operation as
// RemoveBehaviorSources. A subsequent GetBehavior call gets a fresh, empty
// hub.
func CompleteBehavior(s *Store, i id.Identifier) {
	RemoveBehaviorSources(s, i)
}

// ResetBehaviors closes and forgets every behavior hub and state fold
// currently known to the store, without touching event hubs; a later use of
// one of those identifiers gets a fresh, empty hub. Used between test cases
// that share a store instance.
func ResetBehaviors(s *Store) {
	s.mu.Lock()
	var toClose []*subject.Hub
	for raw, h := range s.hubs {
		if raw.Kind() == id.KindRootState || raw.Kind() == id.KindDerivedState {
			toClose = append(toClose, h)
			delete(s.hubs, raw)
		}
	}
	s.folds = make(map[id.RawID]*stateFold)
	s.mu.Unlock()
	for _, h := range toClose {
		h.Close()
	}
}

// CompleteAllSignals tears every hub in the store down concurrently and
// releases all bookkeeping. After this call the store is empty but still
// usable — subsequent registrations start fresh.
func CompleteAllSignals(ctx context.Context, s *Store) error {
	s.mu.Lock()
	hubs := make([]*subject.Hub, 0, len(s.hubs))
	for raw, h := range s.hubs {
		hubs = append(hubs, h)
		delete(s.hubs, raw)
	}
	s.folds = make(map[id.RawID]*stateFold)
	s.dispatch = make(map[id.RawID]chan subject.Item)
	s.effects = make(map[id.RawID]any)
	s.mu.Unlock()

	g, _ := errgroup.WithContext(ctx)
	for _, h := range hubs {
		h := h
		g.Go(func() error {
			h.Close()
			return nil
		})
	}
	return g.Wait()
}
