/*
Package factory implements the signals-factory composition algebra: an
immutable recipe for wiring a chunk of signal-store plumbing (some
behaviors, some events, maybe an effect) given a configuration and an input
identifier bundle, producing an output identifier bundle other code
subscribes to or composes further.

Go has no higher-kinded types, so SignalsFactory is not a typeclass — it is a
plain immutable value holding a setup function plus the bundle of effect
identifiers it declares (so its real implementations can be supplied
separately, at the store where it actually runs). Every combinator below
takes a SignalsFactory and returns a new one; none mutates its receiver.
*/
package factory

import (
	"context"

	"github.com/cuemby/signalcore/pkg/store"
)

// SetupFunc is the shape every signals-factory ultimately boils down to:
// given a running context, a store to wire into, an input identifier bundle
// and a resolved configuration, install whatever behaviors/events/effects
// this factory is responsible for and return the output identifier bundle.
type SetupFunc[IN, OUT, CFG any] func(ctx context.Context, s *store.Store, input IN, cfg CFG) OUT

// SignalsFactory is an immutable composition unit. EFF is the factory's own
// bundle of effect identifiers (often just id.EffectID[I,R], or a struct of
// several) — kept separate from OUT so a caller composing several factories
// can collect every effect that needs a real implementation without having
// to pick them back out of the output bundle.
type SignalsFactory[IN, OUT, CFG, EFF any] struct {
	setup   SetupFunc[IN, OUT, CFG]
	effects func(CFG) EFF
}

// New builds a SignalsFactory from a setup function and a function deriving
// its effect-identifier bundle from the resolved configuration (most
// factories mint their effect ids independently of CFG and can ignore the
// argument).
func New[IN, OUT, CFG, EFF any](setup SetupFunc[IN, OUT, CFG], effects func(CFG) EFF) SignalsFactory[IN, OUT, CFG, EFF] {
	return SignalsFactory[IN, OUT, CFG, EFF]{setup: setup, effects: effects}
}

// Setup runs the factory: installs its signals on s and returns the output
// bundle. This is the only place a SignalsFactory value is actually
// consumed; everything else in this package builds new factory values.
func (f SignalsFactory[IN, OUT, CFG, EFF]) Setup(ctx context.Context, s *store.Store, input IN, cfg CFG) OUT {
	return f.setup(ctx, s, input, cfg)
}

// Effects returns the factory's effect-identifier bundle for a given
// configuration, so a caller can wire real (or fake, in a test) effect
// implementations via store.AddEffect before calling Setup.
func (f SignalsFactory[IN, OUT, CFG, EFF]) Effects(cfg CFG) EFF {
	return f.effects(cfg)
}

// Build partially applies a fixed configuration, returning a SetupFunc that
// only still needs a context, store and input — the shape most call sites
// actually want once a factory's configuration is settled.
func Build[IN, OUT, CFG, EFF any](f SignalsFactory[IN, OUT, CFG, EFF], cfg CFG) func(context.Context, *store.Store, IN) OUT {
	return func(ctx context.Context, s *store.Store, input IN) OUT {
		return f.Setup(ctx, s, input, cfg)
	}
}

// MapInput produces a factory that accepts a different input type, adapting
// it to f's own input type with fn before delegating.
func MapInput[IN2, IN, OUT, CFG, EFF any](f SignalsFactory[IN, OUT, CFG, EFF], fn func(IN2) IN) SignalsFactory[IN2, OUT, CFG, EFF] {
	return SignalsFactory[IN2, OUT, CFG, EFF]{
		setup: func(ctx context.Context, s *store.Store, input IN2, cfg CFG) OUT {
			return f.setup(ctx, s, fn(input), cfg)
		},
		effects: f.effects,
	}
}

// MapOutput produces a factory whose output bundle is transformed by fn
// after Setup runs — e.g. to expose a narrower view of an output bundle to
// callers that only need part of it.
func MapOutput[IN, OUT, OUT2, CFG, EFF any](f SignalsFactory[IN, OUT, CFG, EFF], fn func(OUT) OUT2) SignalsFactory[IN, OUT2, CFG, EFF] {
	return SignalsFactory[IN, OUT2, CFG, EFF]{
		setup: func(ctx context.Context, s *store.Store, input IN, cfg CFG) OUT2 {
			return fn(f.setup(ctx, s, input, cfg))
		},
		effects: f.effects,
	}
}

// MapConfig produces a factory accepting a different configuration type,
// adapting it to f's own configuration type with fn.
func MapConfig[IN, OUT, CFG2, CFG, EFF any](f SignalsFactory[IN, OUT, CFG, EFF], fn func(CFG2) CFG) SignalsFactory[IN, OUT, CFG2, EFF] {
	return SignalsFactory[IN, OUT, CFG2, EFF]{
		setup: func(ctx context.Context, s *store.Store, input IN, cfg CFG2) OUT {
			return f.setup(ctx, s, input, fn(cfg))
		},
		effects: func(cfg CFG2) EFF { return f.effects(fn(cfg)) },
	}
}

// MapEffects produces a factory whose effect-identifier bundle is
// transformed by fn — used to rename or regroup effect ids when a factory is
// instantiated more than once against the same store and each instance
// needs distinctly-named effects.
func MapEffects[IN, OUT, CFG, EFF, EFF2 any](f SignalsFactory[IN, OUT, CFG, EFF], fn func(EFF) EFF2) SignalsFactory[IN, OUT, CFG, EFF2] {
	return SignalsFactory[IN, OUT, CFG, EFF2]{
		setup:   f.setup,
		effects: func(cfg CFG) EFF2 { return fn(f.effects(cfg)) },
	}
}

// ExtendSetup produces a factory that runs f's setup and then runs extra
// against the result, returning whatever extra returns — the general-purpose
// hook for adding a bit of extra wiring (one more reducer, one more derived
// behavior) on top of an existing factory without forking it.
func ExtendSetup[IN, OUT, OUT2, CFG, EFF any](f SignalsFactory[IN, OUT, CFG, EFF], extra func(ctx context.Context, s *store.Store, input IN, cfg CFG, out OUT) OUT2) SignalsFactory[IN, OUT2, CFG, EFF] {
	return SignalsFactory[IN, OUT2, CFG, EFF]{
		setup: func(ctx context.Context, s *store.Store, input IN, cfg CFG) OUT2 {
			out := f.setup(ctx, s, input, cfg)
			return extra(ctx, s, input, cfg, out)
		},
		effects: f.effects,
	}
}

// Compose sequences two factories: first is set up, its output is adapted by
// linkInput into the second factory's input type, and the second is set up
// against the same store and context. The composite's own output is
// produced by combine from both factories' outputs; its effect bundle pairs
// both factories' effect bundles.
func Compose[IN, OUT1, OUT2, OUT, CFG, EFF1, EFF2, EFF any](
	first SignalsFactory[IN, OUT1, CFG, EFF1],
	second SignalsFactory[OUT1, OUT2, CFG, EFF2],
	combine func(OUT1, OUT2) OUT,
	combineEffects func(EFF1, EFF2) EFF,
) SignalsFactory[IN, OUT, CFG, EFF] {
	return SignalsFactory[IN, OUT, CFG, EFF]{
		setup: func(ctx context.Context, s *store.Store, input IN, cfg CFG) OUT {
			out1 := first.setup(ctx, s, input, cfg)
			out2 := second.setup(ctx, s, out1, cfg)
			return combine(out1, out2)
		},
		effects: func(cfg CFG) EFF {
			return combineEffects(first.effects(cfg), second.effects(cfg))
		},
	}
}

// Bind is Compose specialised to the common case where the composite's
// output is simply the second factory's output and both effect bundles share
// one type, merged by combineEffects — the shape most
// call sites reach for, analogous to monadic bind threading one stage's
// output into the next stage's input.
func Bind[IN, MID, OUT, CFG, EFF any](
	first SignalsFactory[IN, MID, CFG, EFF],
	second SignalsFactory[MID, OUT, CFG, EFF],
	combineEffects func(EFF, EFF) EFF,
) SignalsFactory[IN, OUT, CFG, EFF] {
	return Compose(first, second, func(_ MID, out2 OUT) OUT { return out2 }, combineEffects)
}
