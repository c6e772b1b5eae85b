package effect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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
func oneShot[R any](fn func(ctx context.Context, in int) (R, error)) store.EffectFunc[int, R] {
	return func(ctx context.Context, in int, _ store.EffectContext, _ opt.Optional[int], _ opt.Optional[R]) <-chan store.Result[R] {
		out := make(chan store.Result[R], 1)
		go func() {
			defer close(out)
			v, err := fn(ctx, in)
			out <- store.Result[R]{Value: v, Err: err}
		}()
		return out
	}
}

func TestSetupRunsEffectOnInputChange(t *testing.T) {
	s := store.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eid := id.NewEffectID[int, int]("double")
	require.NoError(t, store.AddEffect(s, eid, oneShot(func(_ context.Context, in int) (int, error) {
		return in * 2, nil
	})))

	inputID := store.AddState(s, "double.input", 0)
	_, out := Setup(ctx, s, "double", Config[int, int]{Input: inputID, Effect: eid})

	resultCh, cancelResult := store.GetBehavior(s, out.Result)
	defer cancelResult()
	successCh, cancelSuccess := store.GetEventStream(s, out.CompletedSuccesses)
	defer cancelSuccess()

	inputEvent := id.EventID[int]("double.set")
	require.NoError(t, store.AddReducer(s, inputID, inputEvent, func(_, v int) int { return v }))
	require.NoError(t, store.Dispatch(s, inputEvent, 21).Do(ctx))

	v, ok := recv(t, successCh, time.Second)
	require.True(t, ok)
	assert.Equal(t, 42, v.Result)

	deadline := time.After(time.Second)
	for {
		select {
		case got := <-resultCh:
			if got == 42 {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for result behavior to reflect success")
		}
	}
}

func TestSetupReportsError(t *testing.T) {
	s := store.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	boom := errors.New("boom")
	eid := id.NewEffectID[int, int]("fails")
	require.NoError(t, store.AddEffect(s, eid, oneShot(func(_ context.Context, in int) (int, error) {
		return 0, boom
	})))

	inputID := store.AddState(s, "fails.input", 0)
	ids, out := Setup(ctx, s, "fails", Config[int, int]{Input: inputID, Effect: eid})
	_ = ids
	errCh, cancelErr := store.GetEventStream(s, out.Errors)
	defer cancelErr()
	pendingCh, cancelPending := store.GetBehavior(s, out.Pending)
	defer cancelPending()
	_ = pendingCh

	inputEvent := id.EventID[int]("fails.set")
	require.NoError(t, store.AddReducer(s, inputID, inputEvent, func(_, v int) int { return v }))
	require.NoError(t, store.Dispatch(s, inputEvent, 1).Do(ctx))

	v, ok := recv(t, errCh, time.Second)
	require.True(t, ok)
	assert.ErrorIs(t, v.Err, boom)
}

func TestSwitchLatestCancelsSupersededRun(t *testing.T) {
	s := store.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan int, 8)
	eid := id.NewEffectID[int, int]("slow")
	require.NoError(t, store.AddEffect(s, eid, oneShot(func(runCtx context.Context, in int) (int, error) {
		started <- in
		select {
		case <-time.After(200 * time.Millisecond):
			return in, nil
		case <-runCtx.Done():
			return 0, runCtx.Err()
		}
	})))

	inputID := store.AddState(s, "slow.input", 0)
	_, out := Setup(ctx, s, "slow", Config[int, int]{Input: inputID, Effect: eid})
	successCh, cancelSuccess := store.GetEventStream(s, out.CompletedSuccesses)
	defer cancelSuccess()
	// Subscribing to Pending is what actually starts the lazy combined
	// pipeline; CompletedSuccesses alone would never see anything emitted.
	pendingCh, cancelPending := store.GetBehavior(s, out.Pending)
	defer cancelPending()
	_ = pendingCh

	inputEvent := id.EventID[int]("slow.set")
	require.NoError(t, store.AddReducer(s, inputID, inputEvent, func(_, v int) int { return v }))

	require.NoError(t, store.Dispatch(s, inputEvent, 1).Do(ctx))
	<-started
	require.NoError(t, store.Dispatch(s, inputEvent, 2).Do(ctx))
	<-started

	v, ok := recv(t, successCh, time.Second)
	require.True(t, ok)
	assert.Equal(t, 2, v.Result, "only the latest invocation's result should ever surface")
}

func TestIsStale(t *testing.T) {
	equal := defaultEquals[int]()
	token := new(struct{})

	rs := resultState[int, int]{}
	assert.True(t, isStale(1, rs, token, equal), "no result ever settled")

	rs = resultState[int, int]{ResultInput: opt.Some(1), ResultToken: token, Completed: true}
	assert.False(t, isStale(1, rs, token, equal), "matching input, token, and a completed result is fresh")
	assert.True(t, isStale(2, rs, token, equal), "different input is stale")
	assert.True(t, isStale(1, rs, new(struct{}), equal), "different token is stale")

	rs.Completed = false
	assert.True(t, isStale(1, rs, token, equal), "a partial result is always stale")
}
