package store

import (
	"context"
	"fmt"

	"github.com/cuemby/signalcore/pkg/id"
	"github.com/cuemby/signalcore/pkg/opt"
)

// Result is one value produced by a running effect: either a success
// (Err == nil) or the sequence's terminal failure (Err != nil — the
// producing channel is expected to close immediately after). A sequence
// that simply closes without ever sending an errored Result completes
// successfully, carrying whatever was last sent as its outcome.
type Result[R any] struct {
	Value R
	Err   error
}

// EffectContext is the handle an effect implementation gets onto the store
// running it — e.g. to read other behaviors as part of doing its work. Kept
// as a struct rather than a bare *Store so the effect-signals machinery can
// extend it later without breaking every registered EffectFunc's signature.
type EffectContext struct {
	Store *Store
}

// EffectFunc is the shape every registered effect implementation has. Unlike
// a plain async function settling one (R, error), an effect here produces a
// channel: a lazy sequence of results for one input, given the input and
// result the engine's result state holds when the run starts: previousInput
// is NoValue until some run has reported a result, and previousResult is the
// last reported value (partial or final, or the initial-result seed before
// any run) or NoValue. Most effects send exactly one Result and close
// the channel; a polling or streaming effect may send several before its
// last one.
type EffectFunc[I, R any] func(ctx context.Context, input I, access EffectContext, previousInput opt.Optional[I], previousResult opt.Optional[R]) <-chan Result[R]

// AddEffect registers the concrete implementation behind an effect
// identifier a signals-factory declared. The factory that declares an
// EffectID and the call site that supplies its implementation are
// deliberately decoupled — a factory can be composed and tested with a fake
// effect, then wired to its real implementation only once, at the store
// where it is actually run.
func AddEffect[I, R any](s *Store, eid id.EffectID[I, R], fn EffectFunc[I, R]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.effects[eid.Raw()]; exists {
		return fmt.Errorf("store: AddEffect: %w: %s", ErrDuplicateSource, eid)
	}
	s.effects[eid.Raw()] = fn
	return nil
}

// GetEffect retrieves the implementation registered for eid, if any.
func GetEffect[I, R any](s *Store, eid id.EffectID[I, R]) (EffectFunc[I, R], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.effects[eid.Raw()]
	if !ok {
		return nil, false
	}
	fn, ok := raw.(EffectFunc[I, R])
	return fn, ok
}
