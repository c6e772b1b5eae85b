package effect

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/signalcore/pkg/store"
)

func TestTriggerNewRunsOnlyOnTrigger(t *testing.T) {
	s := store.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runs := make(chan struct{}, 8)
	ids, out := New(ctx, s, "poll", func(ctx context.Context) <-chan Result[int] {
		runs <- struct{}{}
		out := make(chan Result[int], 1)
		out <- Result[int]{Value: 7}
		close(out)
		return out
	}, TriggerConfig[int]{})

	resultCh, cancelResult := store.GetBehavior(s, out.Result)
	defer cancelResult()

	select {
	case <-runs:
		t.Fatal("effect must not run before Trigger is dispatched")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, store.Dispatch(s, ids.Trigger, struct{}{}).Do(ctx))

	select {
	case <-runs:
	case <-time.After(time.Second):
		t.Fatal("effect never ran after Trigger")
	}

	deadline := time.After(time.Second)
	for {
		select {
		case v, ok := <-resultCh:
			if ok && v == 7 {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for triggered result")
		}
	}
}

func TestTriggerNewReRunsOnInvalidate(t *testing.T) {
	s := store.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var n int
	ids, out := New(ctx, s, "poll2", func(ctx context.Context) <-chan Result[int] {
		n++
		out := make(chan Result[int], 1)
		out <- Result[int]{Value: n}
		close(out)
		return out
	}, TriggerConfig[int]{})

	resultCh, cancelResult := store.GetBehavior(s, out.Result)
	defer cancelResult()

	require.NoError(t, store.Dispatch(s, ids.Trigger, struct{}{}).Do(ctx))
	first, ok := recv(t, resultCh, time.Second)
	require.True(t, ok)
	assert.Equal(t, 1, first)

	require.NoError(t, store.Dispatch(s, ids.Invalidate, struct{}{}).Do(ctx))

	deadline := time.After(time.Second)
	for {
		select {
		case v, ok := <-resultCh:
			if ok && v == 2 {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for re-run after Invalidate")
		}
	}
}
