package factory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/signalcore/pkg/id"
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

// counterFactory installs a simple counter state reduced by an externally
// supplied increment event, returning the state identifier as output.
func counterFactory() SignalsFactory[id.ID[int], id.ID[int], int, struct{}] {
	return New(
		func(ctx context.Context, s *store.Store, incrEvt id.ID[int], initial int) id.ID[int] {
			sid := store.AddState(s, "counter", initial)
			_ = store.AddReducer(s, sid, incrEvt, func(old, delta int) int { return old + delta })
			return sid
		},
		func(int) struct{} { return struct{}{} },
	)
}

func TestSetupInstallsCounter(t *testing.T) {
	s := store.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	incr := id.EventID[int]("incr")
	f := counterFactory()
	sid := f.Setup(ctx, s, incr, 10)

	ch, cancelSub := store.GetBehavior(s, sid)
	defer cancelSub()
	v, ok := recv(t, ch, time.Second)
	require.True(t, ok)
	assert.Equal(t, 10, v)

	require.NoError(t, store.Dispatch(s, incr, 5).Do(ctx))
	v, ok = recv(t, ch, time.Second)
	require.True(t, ok)
	assert.Equal(t, 15, v)
}

func TestMapOutputProjectsResult(t *testing.T) {
	s := store.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	incr := id.EventID[int]("incr")
	doubled := MapOutput(counterFactory(), func(sid id.ID[int]) id.ID[int] {
		return MapOutputBehavior(ctx, s, "doubled", sid, func(v int) int { return v * 2 })
	})

	out := doubled.Setup(ctx, s, incr, 1)
	ch, cancelSub := store.GetBehavior(s, out)
	defer cancelSub()

	v, ok := recv(t, ch, time.Second)
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestMapConfigAdaptsConfigurationType(t *testing.T) {
	s := store.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type cfg struct{ Initial int }
	adapted := MapConfig(counterFactory(), func(c cfg) int { return c.Initial })

	incr := id.EventID[int]("incr")
	sid := adapted.Setup(ctx, s, incr, cfg{Initial: 7})

	ch, cancelSub := store.GetBehavior(s, sid)
	defer cancelSub()
	v, ok := recv(t, ch, time.Second)
	require.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestBindThreadsOutputIntoSecondFactoryInput(t *testing.T) {
	s := store.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Second factory halves whatever behavior identifier it receives.
	second := New(
		func(ctx context.Context, s *store.Store, in id.ID[int], _ int) id.ID[int] {
			return MapOutputBehavior(ctx, s, "halved", in, func(v int) int { return v / 2 })
		},
		func(int) struct{} { return struct{}{} },
	)

	combineEffects := func(a, b struct{}) struct{} { return struct{}{} }
	composite := Bind(counterFactory(), second, combineEffects)

	incr := id.EventID[int]("incr")
	out := composite.Setup(ctx, s, incr, 8)

	ch, cancelSub := store.GetBehavior(s, out)
	defer cancelSub()
	v, ok := recv(t, ch, time.Second)
	require.True(t, ok)
	assert.Equal(t, 4, v)
}
