package patterns

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/signalcore/pkg/effect"
	"github.com/cuemby/signalcore/pkg/id"
	"github.com/cuemby/signalcore/pkg/opt"
	"github.com/cuemby/signalcore/pkg/store"
)

func recv[T any](t *testing.T, ch <-chan T, timeout time.Duration) (T, bool) {
	t.Helper()
	select {
	case v, ok := <-ch:
		return v, ok
	case <-time.After(timeout):
		var zero T
		return zero, false
	}
}

// oneShot adapts a plain (R, error)-returning function into the channel
// shape store.EffectFunc expects: a single Result, then close.
func oneShot[I, R any](fn func(ctx context.Context, in I) (R, error)) store.EffectFunc[I, R] {
	return func(ctx context.Context, in I, _ store.EffectContext, _ opt.Optional[I], _ opt.Optional[R]) <-chan store.Result[R] {
		out := make(chan store.Result[R], 1)
		go func() {
			defer close(out)
			v, err := fn(ctx, in)
			out <- store.Result[R]{Value: v, Err: err}
		}()
		return out
	}
}

func TestValidatedInputRejectsBadInput(t *testing.T) {
	s := store.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eid := id.NewEffectID[int, int]("square")
	require.NoError(t, store.AddEffect(s, eid, oneShot(func(_ context.Context, in int) (int, error) {
		return in * in, nil
	})))

	ids := ValidatedInputWithResult(ctx, s, "validated", ValidatedConfig[int, int]{
		Validate: func(in int) error {
			if in < 0 {
				return errors.New("must be non-negative")
			}
			return nil
		},
		Effect: effect.Config[int, int]{Effect: eid},
	})

	errCh, cancelErr := store.GetBehavior(s, ids.ValidationError)
	defer cancelErr()
	successCh, cancelSuccess := store.GetEventStream(s, ids.Outputs.CompletedSuccesses)
	defer cancelSuccess()

	_, _ = recv(t, errCh, time.Second) // initial None

	require.NoError(t, store.Dispatch(s, ids.Input, -1).Do(ctx))
	ve, ok := recv(t, errCh, time.Second)
	require.True(t, ok)
	assert.True(t, ve.IsPresent())

	require.NoError(t, store.Dispatch(s, ids.Input, 4).Do(ctx))
	v, ok := recv(t, successCh, time.Second)
	require.True(t, ok)
	assert.Equal(t, 16, v.Result)
}

func TestEntityEditTracksDirtyAndSave(t *testing.T) {
	s := store.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eid := id.NewEffectID[string, string]("persist")
	require.NoError(t, store.AddEffect(s, eid, oneShot(func(_ context.Context, in string) (string, error) {
		return in, nil
	})))

	ids := EntityEdit(ctx, s, "name", EntityEditConfig[string]{
		Initial: "alice",
		Save:    effect.Config[string, string]{Effect: eid},
	}, func(a, b string) bool { return a == b })

	dirtyCh, cancelDirty := store.GetBehavior(s, ids.Dirty)
	defer cancelDirty()
	_, _ = recv(t, dirtyCh, time.Second)

	require.NoError(t, store.Dispatch(s, ids.Edit, func(s string) string { return s + "-edited" }).Do(ctx))
	dirty, ok := recv(t, dirtyCh, time.Second)
	require.True(t, ok)
	assert.True(t, dirty)

	require.NoError(t, store.Dispatch(s, ids.Save, struct{}{}).Do(ctx))

	deadline := time.After(time.Second)
	for {
		select {
		case d := <-dirtyCh:
			if !d {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for dirty to clear after save")
		}
	}
}
