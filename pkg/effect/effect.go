/*
Package effect implements the effect-signals state machine: given a behavior
to watch as input and an asynchronous effect registered against the store, it
derives a combined signal describing whether the effect's result is current
for the latest input, plus the split-out Result/Pending/Successes/Errors
signals most callers actually want to subscribe to.

The machine never runs more than one effect invocation at a time for a given
installation: every new (input, invalidation, trigger) combination cancels
whatever invocation is still in flight before starting or arming the next
one (switch-latest), and the whole pipeline is driven from a single lazily-
subscribed derived behavior so that having nobody subscribed to Result or
Pending means no effect runs at all.
*/
package effect

import (
	"context"
	"time"

	"github.com/cuemby/signalcore/pkg/id"
	"github.com/cuemby/signalcore/pkg/opt"
	"github.com/cuemby/signalcore/pkg/store"
)

// Result and EffectContext are the store's vocabulary for what an effect
// implementation produces and receives; re-exported here so callers working
// exclusively with this package never need to import pkg/store directly for
// them. Effect is the registered-implementation shape itself.
type (
	Result[R any]    = store.Result[R]
	EffectContext    = store.EffectContext
	Effect[I, R any] = store.EffectFunc[I, R]
)

// Config configures one effect-signals installation.
type Config[I, R any] struct {
	// Input is the behavior this machine watches; it is supplied by the
	// caller (already registered elsewhere on s), never minted by Setup.
	Input id.ID[I]

	// Effect is the registered implementation Setup invokes whenever Input
	// settles on a value the current result state doesn't already cover.
	Effect id.EffectID[I, R]

	// EffectInputEquals decides whether two inputs are "the same" for
	// staleness purposes. Defaults to a boxed == comparison, which panics
	// for a non-comparable I (a slice, map, or func) — callers with such an
	// I must supply their own.
	EffectInputEquals func(I, I) bool

	// WithTrigger gates the first effect invocation for a given input
	// behind an explicit Trigger dispatch; once that input has produced a
	// settled result, it no longer needs re-triggering (only invalidating).
	WithTrigger bool

	// InitialResultGetter, if set, seeds the result behavior before any
	// effect has ever run — e.g. a value read from a cache at startup.
	InitialResultGetter func() opt.Optional[R]

	// EffectDebounceTime, if positive, delays starting a newly-stale run by
	// this long; a further change within the window restarts the timer
	// rather than stacking up invocations.
	EffectDebounceTime time.Duration

	// WrappedEffectGetter, if set, wraps the registered effect before each
	// invocation — e.g. to add retry or rate-limiting behavior without
	// touching the registered implementation itself.
	WrappedEffectGetter func(Effect[I, R]) Effect[I, R]

	// EagerInputSubscription forces the combined pipeline to stay running
	// even with no external subscriber to Result/Pending, e.g. so a
	// background sync effect starts as soon as the store does.
	EagerInputSubscription bool

	// NameExtension disambiguates multiple installations of the same
	// factory against one store; appended to every identifier this Setup
	// mints.
	NameExtension string
}

// Ids is the bundle of identifiers the caller drives directly: Input is
// simply cfg.Input handed back for convenience, Invalidate forces the next
// combined evaluation to be treated as stale regardless of input equality,
// and Trigger (meaningful only when WithTrigger is set) arms a pending run.
type Ids[I, R any] struct {
	Input      id.ID[I]
	Invalidate id.ID[struct{}]
	Trigger    id.ID[struct{}]
}

// CombinedResult is the single joined view of "current input vs. last
// settled result" the machine derives on every relevant change.
type CombinedResult[I, R any] struct {
	CurrentInput  I
	Result        opt.Optional[R]
	ResultInput   opt.Optional[I]
	ResultError   error
	ResultPending bool
}

// ErrorEvent is dispatched every time a running effect's sequence ends in an
// error.
type ErrorEvent[I any] struct {
	Input I
	Err   error
}

// SuccessEvent is dispatched for every value an effect's sequence produces,
// partial or terminal; Completed distinguishes the two.
type SuccessEvent[I, R any] struct {
	Input          I
	Result         R
	PreviousInput  opt.Optional[I]
	PreviousResult opt.Optional[R]
	Completed      bool
}

// Outputs is the bundle of identifiers the caller observes.
type Outputs[I, R any] struct {
	Combined           id.ID[CombinedResult[I, R]]
	Result             id.ID[R]
	Pending            id.ID[bool]
	Errors             id.ID[ErrorEvent[I]]
	Successes          id.ID[SuccessEvent[I, R]]
	CompletedSuccesses id.ID[SuccessEvent[I, R]]
}

// resultState is the single record the machine folds every effect outcome
// into — one event id feeds it wholesale replacements, never a partial
// patch, so readers never observe a half-updated combination of fields.
type resultState[I, R any] struct {
	Result      opt.Optional[R]
	ResultInput opt.Optional[I]
	ResultError error
	ResultToken *struct{}
	Completed   bool
}

func defaultEquals[I any]() func(I, I) bool {
	return func(a, b I) bool { return any(a) == any(b) }
}

// isStale reports whether the current input is not (yet) covered by the
// settled resultState: either the invalidation token has moved on, no
// result has ever settled for this input, the settled input differs from
// the current one, or the settled result is itself a partial (a streaming
// effect still in flight).
func isStale[I, R any](input I, rs resultState[I, R], token *struct{}, equal func(I, I) bool) bool {
	if token != rs.ResultToken {
		return true
	}
	ri, ok := rs.ResultInput.Get()
	if !ok {
		return true
	}
	if !equal(input, ri) {
		return true
	}
	return !rs.Completed
}

// Setup installs an effect-signals machine named name on s and returns its
// driven (Ids) and observed (Outputs) identifier bundles.
func Setup[I, R any](ctx context.Context, s *store.Store, name string, cfg Config[I, R]) (Ids[I, R], Outputs[I, R]) {
	if cfg.EffectInputEquals == nil {
		cfg.EffectInputEquals = defaultEquals[I]()
	}
	fullName := name + cfg.NameExtension

	ids := Ids[I, R]{
		Input:      cfg.Input,
		Invalidate: id.EventID[struct{}](fullName + ".invalidate"),
		Trigger:    id.EventID[struct{}](fullName + ".trigger"),
	}

	initial := opt.None[R]()
	if cfg.InitialResultGetter != nil {
		initial = cfg.InitialResultGetter()
	}

	resultEventID := id.EventID[resultState[I, R]](fullName + ".resultEvent")
	resultStateID := store.AddState(s, fullName+".resultState", resultState[I, R]{Result: initial})
	_ = store.AddReducer(s, resultStateID, resultEventID, func(_ resultState[I, R], next resultState[I, R]) resultState[I, R] {
		return next
	})

	triggeredInputEventID := id.EventID[I](fullName + ".triggeredInput")
	triggeredInputID := store.AddState(s, fullName+".triggeredInput", opt.None[I]())
	_ = store.AddReducer(s, triggeredInputID, triggeredInputEventID, func(_ opt.Optional[I], v I) opt.Optional[I] {
		return opt.Some(v)
	})

	invalidateTokenID := store.AddState(s, fullName+".invalidateToken", new(struct{}))
	_ = store.AddReducer(s, invalidateTokenID, ids.Invalidate, func(_ *struct{}, _ struct{}) *struct{} {
		return new(struct{})
	})

	errorsID := id.EventID[ErrorEvent[I]](fullName + ".errors")
	successesID := id.EventID[SuccessEvent[I, R]](fullName + ".successes")
	completedSuccessesID := id.EventID[SuccessEvent[I, R]](fullName + ".completedSuccesses")

	deps := engineDeps[I, R]{
		cfg:                   cfg,
		ids:                   ids,
		resultStateID:         resultStateID,
		invalidateTokenID:     invalidateTokenID,
		triggeredInputID:      triggeredInputID,
		triggeredInputEventID: triggeredInputEventID,
		resultEventID:         resultEventID,
		errorsID:              errorsID,
		successesID:           successesID,
		completedSuccessesID:  completedSuccessesID,
	}

	life := store.Lazy
	if cfg.EagerInputSubscription {
		life = store.NonLazy
	}
	combinedID := store.AddDerivedState(s, fullName+".combined", life, func(ctx context.Context) <-chan CombinedResult[I, R] {
		return runCombined(ctx, s, deps)
	}, opt.None[CombinedResult[I, R]]())

	resultID := store.AddDerivedState(s, fullName+".result", store.Lazy, func(ctx context.Context) <-chan R {
		return filterResult(ctx, s, combinedID)
	}, opt.None[R]())

	pendingID := store.AddDerivedState(s, fullName+".pending", store.Lazy, func(ctx context.Context) <-chan bool {
		return mapPending(ctx, s, combinedID)
	}, opt.Some(false))

	return ids, Outputs[I, R]{
		Combined:           combinedID,
		Result:             resultID,
		Pending:            pendingID,
		Errors:             errorsID,
		Successes:          successesID,
		CompletedSuccesses: completedSuccessesID,
	}
}

// engineDeps bundles everything runCombined/invokeEffect need so their
// signatures stay manageable despite the number of identifiers involved.
type engineDeps[I, R any] struct {
	cfg                   Config[I, R]
	ids                   Ids[I, R]
	resultStateID         id.ID[resultState[I, R]]
	invalidateTokenID     id.ID[*struct{}]
	triggeredInputID      id.ID[opt.Optional[I]]
	triggeredInputEventID id.ID[I]
	resultEventID         id.ID[resultState[I, R]]
	errorsID              id.ID[ErrorEvent[I]]
	successesID           id.ID[SuccessEvent[I, R]]
	completedSuccessesID  id.ID[SuccessEvent[I, R]]
}

// quad is one joined emission of (input, resultState, invalidateToken,
// triggeredInput) from combineLatest4.
type quad[I, R any] struct {
	input   I
	rs      resultState[I, R]
	token   *struct{}
	trigger opt.Optional[I]
}

// runCombined is the machine's single driven source: it does double duty as
// the producer of every CombinedResult downstream subscribers see AND as the
// only place that ever starts/arms/cancels an effect invocation, because
// both roles must share the one lazily-held subscription to the four
// constituent behaviors — Result/Pending subscribing independently would
// break that guarantee by risking two concurrent runs.
func runCombined[I, R any](ctx context.Context, s *store.Store, d engineDeps[I, R]) <-chan CombinedResult[I, R] {
	inputCh, cancelIn := store.GetBehavior(s, d.ids.Input)
	resultCh, cancelRes := store.GetBehavior(s, d.resultStateID)
	tokenCh, cancelTok := store.GetBehavior(s, d.invalidateTokenID)
	triggeredCh, cancelTrig := store.GetBehavior(s, d.triggeredInputID)

	quads := combineLatest4(ctx, inputCh, resultCh, tokenCh, triggeredCh)
	out := make(chan CombinedResult[I, R])

	go func() {
		defer close(out)
		defer cancelIn()
		defer cancelRes()
		defer cancelTok()
		defer cancelTrig()

		var active context.CancelFunc
		// running, runInput and runToken describe the effect invocation that
		// active cancels, if it is one (a trigger wait leaves running false).
		var running bool
		var runInput I
		var runToken *struct{}
		stop := func() {
			if active != nil {
				active()
				active = nil
			}
			running = false
		}
		defer stop()

		var debounce *time.Timer
		var debounceC <-chan time.Time
		var armed *quad[I, R]
		disarm := func() {
			if debounce != nil {
				debounce.Stop()
			}
			debounceC = nil
			armed = nil
		}
		defer disarm()

		emit := func(cr CombinedResult[I, R]) bool {
			select {
			case out <- cr:
				return true
			case <-ctx.Done():
				return false
			}
		}

		runFor := func(q quad[I, R]) {
			stop()
			wctx, cancel := context.WithCancel(ctx)
			active = cancel
			running, runInput, runToken = true, q.input, q.token
			go invokeEffect(wctx, s, d, q.input, q.rs, q.token)
		}

		armTrigger := func(q quad[I, R]) {
			stop()
			wctx, cancel := context.WithCancel(ctx)
			active = cancel
			go waitForTrigger(wctx, s, d.ids.Trigger, q.input, d.triggeredInputEventID)
		}

		for {
			select {
			case <-ctx.Done():
				return

			case q, ok := <-quads:
				if !ok {
					return
				}
				cr := computeCombined(q.input, q.rs, q.token, d.cfg.EffectInputEquals)
				if !emit(cr) {
					return
				}
				if !cr.ResultPending {
					stop()
					disarm()
					continue
				}
				// A partial result from the invocation still running for this
				// same input and token leaves that invocation going.
				if running && !q.rs.Completed && q.token == runToken && q.rs.ResultToken == runToken {
					if ri, ok := q.rs.ResultInput.Get(); ok && d.cfg.EffectInputEquals(ri, runInput) && d.cfg.EffectInputEquals(q.input, runInput) {
						continue
					}
				}
				if d.cfg.WithTrigger {
					if triggered, has := q.trigger.Get(); !has || !d.cfg.EffectInputEquals(triggered, q.input) {
						armTrigger(q)
						disarm()
						continue
					}
				}
				if d.cfg.EffectDebounceTime <= 0 {
					runFor(q)
					continue
				}
				disarm()
				qc := q
				armed = &qc
				debounce = time.NewTimer(d.cfg.EffectDebounceTime)
				debounceC = debounce.C

			case <-debounceC:
				if armed != nil {
					runFor(*armed)
				}
				disarm()
			}
		}
	}()
	return out
}

func computeCombined[I, R any](input I, rs resultState[I, R], token *struct{}, equal func(I, I) bool) CombinedResult[I, R] {
	return CombinedResult[I, R]{
		CurrentInput:  input,
		Result:        rs.Result,
		ResultInput:   rs.ResultInput,
		ResultError:   rs.ResultError,
		ResultPending: isStale(input, rs, token, equal),
	}
}

// waitForTrigger arms a one-shot subscription to the Trigger event; the
// first occurrence maps to a triggeredInput dispatch carrying the input
// that was current when the wait began, unblocking runCombined's staleness
// check on its next pass.
func waitForTrigger[I any](ctx context.Context, s *store.Store, triggerID id.ID[struct{}], input I, triggeredInputEventID id.ID[I]) {
	ch, cancel := store.GetEventStream(s, triggerID)
	defer cancel()
	select {
	case <-ctx.Done():
		return
	case _, ok := <-ch:
		if !ok {
			return
		}
		_ = store.Dispatch(s, triggeredInputEventID, input).Do(ctx)
	}
}

// invokeEffect runs the registered effect for one (input, token) pair,
// adapting its returned sequence into resultEvent/Successes/Errors
// dispatches. Cancelling ctx (runCombined's switch-latest) is the only way
// an in-flight invocation is abandoned; the effect implementation is
// expected to honour ctx itself.
func invokeEffect[I, R any](ctx context.Context, s *store.Store, d engineDeps[I, R], input I, prev resultState[I, R], token *struct{}) {
	fn, ok := store.GetEffect(s, d.cfg.Effect)
	if !ok {
		return
	}
	if d.cfg.WrappedEffectGetter != nil {
		fn = d.cfg.WrappedEffectGetter(fn)
	}

	access := store.EffectContext{Store: s}
	seq := fn(ctx, input, access, prev.ResultInput, prev.Result)

	lastResult := prev.Result
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-seq:
			if !ok {
				dispatchTerminal(ctx, s, d, input, prev, token, lastResult, nil)
				return
			}
			if item.Err != nil {
				_ = store.Dispatch(s, d.errorsID, ErrorEvent[I]{Input: input, Err: item.Err}).Do(ctx)
				dispatchTerminal(ctx, s, d, input, prev, token, opt.None[R](), item.Err)
				return
			}

			lastResult = opt.Some(item.Value)
			success := SuccessEvent[I, R]{
				Input: input, Result: item.Value,
				PreviousInput: prev.ResultInput, PreviousResult: prev.Result,
				Completed: false,
			}
			_ = store.Dispatch(s, d.successesID, success).Do(ctx)
			_ = store.Dispatch(s, d.resultEventID, resultState[I, R]{
				Result: lastResult, ResultInput: opt.Some(input),
				ResultToken: token, Completed: false,
			}).Do(ctx)
		}
	}
}

// dispatchTerminal settles the machine once an effect's sequence ends,
// either by closing cleanly (err == nil, result carries whatever was last
// emitted — or the prior result, if nothing ever was) or by producing an
// error (result becomes NoValue). Either way the resultEvent's token and
// input are stamped with this run's, clearing staleness for this input.
func dispatchTerminal[I, R any](ctx context.Context, s *store.Store, d engineDeps[I, R], input I, prev resultState[I, R], token *struct{}, result opt.Optional[R], err error) {
	if err == nil {
		if v, ok := result.Get(); ok {
			success := SuccessEvent[I, R]{
				Input: input, Result: v,
				PreviousInput: prev.ResultInput, PreviousResult: prev.Result,
				Completed: true,
			}
			_ = store.Dispatch(s, d.successesID, success).Do(ctx)
			_ = store.Dispatch(s, d.completedSuccessesID, success).Do(ctx)
		}
	}
	_ = store.Dispatch(s, d.resultEventID, resultState[I, R]{
		Result: result, ResultInput: opt.Some(input), ResultError: err,
		ResultToken: token, Completed: true,
	}).Do(ctx)
}

// filterResult derives the Result output: only values from combined states
// that are settled, errorless, and actually carry a value.
func filterResult[I, R any](ctx context.Context, s *store.Store, combinedID id.ID[CombinedResult[I, R]]) <-chan R {
	in, cancel := store.GetBehavior(s, combinedID)
	out := make(chan R)
	go func() {
		defer cancel()
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case cr, ok := <-in:
				if !ok {
					return
				}
				if cr.ResultPending || cr.ResultError != nil {
					continue
				}
				v, ok := cr.Result.Get()
				if !ok {
					continue
				}
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// mapPending derives the Pending output straight from combined's
// ResultPending field.
func mapPending[I, R any](ctx context.Context, s *store.Store, combinedID id.ID[CombinedResult[I, R]]) <-chan bool {
	in, cancel := store.GetBehavior(s, combinedID)
	out := make(chan bool)
	go func() {
		defer cancel()
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case cr, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- cr.ResultPending:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
