/*
Package patterns implements two signal-graph shapes that recur often enough
across factories to be worth naming: ValidatedInputWithResult (validate an
input before it is allowed to trigger an effect) and EntityEdit (a local
draft of an entity, dirty-tracking against its last-loaded baseline, and a
save effect). Both are built directly from package effect and package
store rather than as a SignalsFactory combinator, since neither needs to
compose with arbitrary other factories to be useful on its own.
*/
package patterns

import (
	"context"

	"github.com/cuemby/signalcore/pkg/effect"
	"github.com/cuemby/signalcore/pkg/id"
	"github.com/cuemby/signalcore/pkg/opt"
	"github.com/cuemby/signalcore/pkg/store"
)

// ValidatedConfig configures ValidatedInputWithResult. cfg.Effect.Input is
// ignored — this pattern owns and supplies the effect's Input behavior
// itself, since only validated values may ever reach it.
type ValidatedConfig[I, R any] struct {
	// Validate reports a validation error for a candidate input, or nil if
	// it is acceptable. A nil Validate accepts every input unconditionally.
	Validate func(I) error
	Effect   effect.Config[I, R]
}

// ValidatedIds is the identifier bundle ValidatedInputWithResult installs.
type ValidatedIds[I, R any] struct {
	// Input is dispatched with every candidate value, valid or not.
	Input id.ID[I]

	// ValidationError carries the last validation failure, or None once a
	// valid input has cleared it.
	ValidationError id.ID[opt.Optional[error]]

	// Result/Outputs are the underlying effect-signals bundles, only ever
	// driven by inputs that passed validation.
	Result  effect.Ids[I, R]
	Outputs effect.Outputs[I, R]
}

// ValidatedInputWithResult installs an effect that is only ever invoked for
// inputs that pass Validate; inputs that fail instead update
// ValidationError and never reach the effect's input behavior.
func ValidatedInputWithResult[I, R any](ctx context.Context, s *store.Store, name string, cfg ValidatedConfig[I, R]) ValidatedIds[I, R] {
	ids := ValidatedIds[I, R]{
		Input: id.EventID[I](name + ".input"),
	}

	// validInput has no initial value: it first emits when an input passes
	// Validate, so the effect never runs on a value that was not validated.
	validationPassed := id.EventID[I](name + ".validationPassed")
	validInput := store.AddDerivedState(s, name+".validInput", store.NonLazy, func(ctx context.Context) <-chan I {
		passed, cancelPassed := store.GetEventStream(s, validationPassed)
		go func() {
			<-ctx.Done()
			cancelPassed()
		}()
		return passed
	}, opt.None[I]())

	validationFailed := id.EventID[error](name + ".validationFailed")
	validationOK := id.EventID[struct{}](name + ".validationOK")

	ids.ValidationError = store.AddState(s, name+".validationError", opt.None[error]())
	_ = store.AddReducer(s, ids.ValidationError, validationFailed, func(_ opt.Optional[error], err error) opt.Optional[error] {
		return opt.Some(err)
	})
	_ = store.AddReducer(s, ids.ValidationError, validationOK, func(opt.Optional[error], struct{}) opt.Optional[error] {
		return opt.None[error]()
	})

	inputCh, cancel := store.GetEventStream(s, ids.Input)
	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-inputCh:
				if !ok {
					return
				}
				if cfg.Validate != nil {
					if err := cfg.Validate(v); err != nil {
						_ = store.Dispatch(s, validationFailed, err).Do(ctx)
						continue
					}
				}
				_ = store.Dispatch(s, validationOK, struct{}{}).Do(ctx)
				_ = store.Dispatch(s, validationPassed, v).Do(ctx)
			}
		}
	}()

	effectCfg := cfg.Effect
	effectCfg.Input = validInput
	// A caller of this pattern typically only watches ValidationError plus
	// the effect's Successes/Errors, not Result/Pending directly — force
	// the combined pipeline to run regardless, so a validated input is
	// never silently dropped for want of a subscriber.
	effectCfg.EagerInputSubscription = true
	ids.Result, ids.Outputs = effect.Setup(ctx, s, name+".effect", effectCfg)

	return ids
}
