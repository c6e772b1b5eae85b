package factory

import (
	"context"

	"github.com/cuemby/signalcore/pkg/id"
	"github.com/cuemby/signalcore/pkg/opt"
	"github.com/cuemby/signalcore/pkg/store"
)

// ConnectInput produces a factory that, before delegating to f, wires source
// into f's expected input identifier via store.Connect — used when the
// input a factory wants is itself produced by some other signal already
// installed on the same store, rather than passed in by the caller.
func ConnectInput[T, OUT, CFG, EFF any](f SignalsFactory[id.ID[T], OUT, CFG, EFF], source id.ID[T]) SignalsFactory[id.ID[T], OUT, CFG, EFF] {
	return SignalsFactory[id.ID[T], OUT, CFG, EFF]{
		setup: func(ctx context.Context, s *store.Store, input id.ID[T], cfg CFG) OUT {
			stop := store.Connect(ctx, s, source, input)
			go func() {
				<-ctx.Done()
				stop()
			}()
			return f.setup(ctx, s, input, cfg)
		},
		effects: f.effects,
	}
}

// ConnectObservableInput is ConnectInput for an arbitrary external source
// function rather than an already-registered identifier.
func ConnectObservableInput[T, OUT, CFG, EFF any](f SignalsFactory[id.ID[T], OUT, CFG, EFF], source func(context.Context) <-chan T) SignalsFactory[id.ID[T], OUT, CFG, EFF] {
	return SignalsFactory[id.ID[T], OUT, CFG, EFF]{
		setup: func(ctx context.Context, s *store.Store, input id.ID[T], cfg CFG) OUT {
			stop := store.ConnectObservable(ctx, s, source, input)
			go func() {
				<-ctx.Done()
				stop()
			}()
			return f.setup(ctx, s, input, cfg)
		},
		effects: f.effects,
	}
}

// MapOutputBehavior rewrites a single behavior identifier inside an output
// bundle (e.g. after MapOutput has projected OUT down to just that
// identifier) into a derived behavior computed from it by fn, re-publishing
// the mapped values under a fresh identifier rather than mutating the
// original.
func MapOutputBehavior[T, U any](ctx context.Context, s *store.Store, name string, source id.ID[T], fn func(T) U) id.ID[U] {
	return store.AddDerivedState(s, name, store.Lazy, func(ctx context.Context) <-chan U {
		in, cancel := store.GetBehavior(s, source)
		out := make(chan U)
		go func() {
			defer cancel()
			defer close(out)
			for {
				select {
				case <-ctx.Done():
					return
				case v, ok := <-in:
					if !ok {
						return
					}
					select {
					case out <- fn(v):
					case <-ctx.Done():
						return
					}
				}
			}
		}()
		return out
	}, opt.None[U]())
}

// UseExistingEffect produces a factory whose Effects() reports an
// externally-supplied effect identifier instead of minting its own —
// used when composing two factories that are meant to share one physical
// effect (e.g. the same HTTP call backs two different signals-factories'
// retry/backoff wiring).
func UseExistingEffect[IN, OUT, CFG, EFF any](f SignalsFactory[IN, OUT, CFG, EFF], existing EFF) SignalsFactory[IN, OUT, CFG, EFF] {
	return SignalsFactory[IN, OUT, CFG, EFF]{
		setup:   f.setup,
		effects: func(CFG) EFF { return existing },
	}
}
