package patterns

import (
	"context"

	"github.com/cuemby/signalcore/pkg/effect"
	"github.com/cuemby/signalcore/pkg/id"
	"github.com/cuemby/signalcore/pkg/opt"
	"github.com/cuemby/signalcore/pkg/store"
)

// EntityEditConfig configures EntityEdit.
type EntityEditConfig[E any] struct {
	// Initial is the entity's value before any Load has happened.
	Initial E
	// Save is the effect that persists a draft; typically a network call.
	Save effect.Config[E, E]
}

// EntityEditIds is the identifier bundle EntityEdit installs.
type EntityEditIds[E any] struct {
	// Load replaces both Draft and the dirty-tracking baseline with a freshly
	// loaded entity — e.g. after a fetch completes.
	Load id.ID[E]

	// Edit applies a patch function to the current draft, leaving the
	// baseline untouched (so Dirty reflects the difference).
	Edit id.ID[func(E) E]

	// Revert resets Draft back to the current baseline, discarding edits.
	Revert id.ID[struct{}]

	// Draft is the current, possibly-edited value.
	Draft id.ID[E]

	// Baseline is the last Load'ed (or last successfully Save'd) value.
	Baseline id.ID[E]

	// Dirty is true whenever Draft differs from Baseline under the equal
	// function passed to EntityEdit.
	Dirty id.ID[bool]

	// Save triggers persistence of the current Draft; the embedded Ids and
	// Outputs mirror effect.Setup's bundles so callers get
	// Pending/Result/Successes/Errors directly.
	Save id.ID[struct{}]
	effect.Ids[E, E]
	Outputs effect.Outputs[E, E]
}

// EntityEdit installs a draft/baseline pair with dirty-tracking and a save
// effect. equal is used to decide Dirty; pass a simple == wrapper when E's
// fields are all comparable.
func EntityEdit[E any](ctx context.Context, s *store.Store, name string, cfg EntityEditConfig[E], equal func(E, E) bool) EntityEditIds[E] {
	ids := EntityEditIds[E]{
		Load:   id.EventID[E](name + ".load"),
		Edit:   id.EventID[func(E) E](name + ".edit"),
		Revert: id.EventID[struct{}](name + ".revert"),
		Save:   id.EventID[struct{}](name + ".save"),
	}

	ids.Baseline = store.AddState(s, name+".baseline", cfg.Initial)
	_ = store.AddReducer(s, ids.Baseline, ids.Load, func(_, loaded E) E { return loaded })

	savedSuccess := id.EventID[E](name + ".savedBaseline")
	_ = store.AddReducer(s, ids.Baseline, savedSuccess, func(_, saved E) E { return saved })

	ids.Draft = store.AddState(s, name+".draft", cfg.Initial)
	_ = store.AddReducer(s, ids.Draft, ids.Load, func(_, loaded E) E { return loaded })
	_ = store.AddReducer(s, ids.Draft, ids.Edit, func(old E, patch func(E) E) E { return patch(old) })
	_ = store.AddReducer(s, ids.Draft, savedSuccess, func(_, saved E) E { return saved })

	// saveInput is the behavior the save effect actually watches: it has no
	// initial value and only moves when Save fires, carrying whatever Draft
	// held at that moment — edits alone never start a save.
	saveInputEvent := id.EventID[E](name + ".saveInput")
	saveInputID := store.AddDerivedState(s, name+".saveInputState", store.NonLazy, func(ctx context.Context) <-chan E {
		saves, cancelSaves := store.GetEventStream(s, saveInputEvent)
		go func() {
			<-ctx.Done()
			cancelSaves()
		}()
		return saves
	}, opt.None[E]())

	effectCfg := cfg.Save
	effectCfg.Input = saveInputID
	// Dirty (and the Baseline/Draft it's derived from) must clear as soon as
	// a save completes whether or not the caller is watching Pending/Result
	// directly — force the pipeline to run.
	effectCfg.EagerInputSubscription = true
	ids.Ids, ids.Outputs = effect.Setup(ctx, s, name+".save", effectCfg)

	// Revert copies the current baseline onto the draft: implemented as a
	// forwarding goroutine rather than a reducer since it needs to read the
	// baseline behavior's current value rather than an event payload.
	revertCh, cancelRevert := store.GetEventStream(s, ids.Revert)
	baselineCh, cancelBaseline := store.GetBehavior(s, ids.Baseline)
	go func() {
		defer cancelRevert()
		defer cancelBaseline()
		var current E
		for {
			select {
			case <-ctx.Done():
				return
			case b, ok := <-baselineCh:
				if !ok {
					return
				}
				current = b
			case _, ok := <-revertCh:
				if !ok {
					return
				}
				_ = store.Dispatch(s, ids.Load, current).Do(ctx)
			}
		}
	}()

	// Save triggers the effect with the current draft.
	saveCh, cancelSave := store.GetEventStream(s, ids.Save)
	draftCh, cancelDraft := store.GetBehavior(s, ids.Draft)
	go func() {
		defer cancelSave()
		defer cancelDraft()
		var current E
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-draftCh:
				if !ok {
					return
				}
				current = d
			case _, ok := <-saveCh:
				if !ok {
					return
				}
				_ = store.Dispatch(s, saveInputEvent, current).Do(ctx)
			}
		}
	}()

	// Forward a successful save back into the baseline/draft so Dirty
	// clears. CompletedSuccesses (not Successes) since a streaming save
	// effect's partial results should never overwrite Baseline early.
	successCh, cancelSuccess := store.GetEventStream(s, ids.Outputs.CompletedSuccesses)
	go func() {
		defer cancelSuccess()
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-successCh:
				if !ok {
					return
				}
				_ = store.Dispatch(s, savedSuccess, v.Result).Do(ctx)
			}
		}
	}()

	ids.Dirty = store.AddDerivedState(s, name+".dirty", store.Lazy, func(ctx context.Context) <-chan bool {
		draftCh, cancelD := store.GetBehavior(s, ids.Draft)
		baselineCh, cancelB := store.GetBehavior(s, ids.Baseline)
		out := make(chan bool, 1)
		go func() {
			defer cancelD()
			defer cancelB()
			defer close(out)
			var draft, baseline E
			haveDraft, haveBaseline := false, false
			emit := func() {
				if haveDraft && haveBaseline {
					select {
					case out <- !equal(draft, baseline):
					case <-ctx.Done():
					}
				}
			}
			for {
				select {
				case <-ctx.Done():
					return
				case v, ok := <-draftCh:
					if !ok {
						return
					}
					draft, haveDraft = v, true
					emit()
				case v, ok := <-baselineCh:
					if !ok {
						return
					}
					baseline, haveBaseline = v, true
					emit()
				}
			}
		}()
		return out
	}, opt.None[bool]())

	return ids
}
