package effect

import (
	"context"
	"time"

	"github.com/cuemby/signalcore/pkg/id"
	"github.com/cuemby/signalcore/pkg/opt"
	"github.com/cuemby/signalcore/pkg/store"
)

// TriggerConfig configures a trigger-signals installation: the same
// effect-signals machine as Config, with the input type fixed to struct{}
// and WithTrigger forced on, since a constant input gives the staleness
// predicate nothing to compare — the first run waits for an explicit Trigger.
type TriggerConfig[R any] struct {
	InitialResultGetter func() opt.Optional[R]
	EffectDebounceTime  time.Duration
	WrappedEffectGetter func(Effect[struct{}, R]) Effect[struct{}, R]
	NameExtension       string
}

// New installs a trigger-signals machine on s: run, wrapped as a
// store.EffectFunc ignoring the constant input, runs on the first Trigger
// dispatch; after that, each Invalidate dispatch runs it again and further
// Trigger dispatches have no effect. It is a thin specialisation of Setup
// rather than a parallel engine — trigger-signals is effect-signals with I pinned to struct{}.
func New[R any](ctx context.Context, s *store.Store, name string, run func(ctx context.Context) <-chan Result[R], cfg TriggerConfig[R]) (Ids[struct{}, R], Outputs[struct{}, R]) {
	effectID := id.NewEffectID[struct{}, R](name + ".effect")
	_ = store.AddEffect(s, effectID, func(ctx context.Context, _ struct{}, _ EffectContext, _ opt.Optional[struct{}], _ opt.Optional[R]) <-chan Result[R] {
		return run(ctx)
	})

	inputID := store.AddState(s, name+".input", struct{}{})

	return Setup(ctx, s, name, Config[struct{}, R]{
		Input:               inputID,
		Effect:              effectID,
		WithTrigger:         true,
		InitialResultGetter: cfg.InitialResultGetter,
		EffectDebounceTime:  cfg.EffectDebounceTime,
		WrappedEffectGetter: cfg.WrappedEffectGetter,
		NameExtension:       cfg.NameExtension,
	})
}
