package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/signalcore/pkg/id"
	"github.com/cuemby/signalcore/pkg/opt"
)

func recvOrTimeout[T any](t *testing.T, ch <-chan T, timeout time.Duration) (T, bool) {
	t.Helper()
	select {
	case v, ok := <-ch:
		return v, ok
	case <-time.After(timeout):
		var zero T
		return zero, false
	}
}

func TestAddStateReplaysInitialValue(t *testing.T) {
	s := New()
	sid := AddState(s, "counter", 0)

	ch, cancel := GetBehavior(s, sid)
	defer cancel()

	v, ok := recvOrTimeout(t, ch, time.Second)
	require.True(t, ok)
	assert.Equal(t, 0, v)
}

func TestAddReducerFoldsDispatchedEvents(t *testing.T) {
	s := New()
	sid := AddState(s, "counter", 0)
	incr := id.EventID[int]("incr")

	require.NoError(t, AddReducer(s, sid, incr, func(old, delta int) int { return old + delta }))

	ch, cancel := GetBehavior(s, sid)
	defer cancel()
	_, _ = recvOrTimeout(t, ch, time.Second) // initial replay

	ctx := context.Background()
	require.NoError(t, Dispatch(s, incr, 5).Do(ctx))
	v, ok := recvOrTimeout(t, ch, time.Second)
	require.True(t, ok)
	assert.Equal(t, 5, v)

	require.NoError(t, Dispatch(s, incr, 3).Do(ctx))
	v, ok = recvOrTimeout(t, ch, time.Second)
	require.True(t, ok)
	assert.Equal(t, 8, v)
}

func TestReducerPanicDiscardsEventButKeepsState(t *testing.T) {
	s := New()
	sid := AddState(s, "counter", 10)
	boom := id.EventID[int]("boom")
	ok := id.EventID[int]("ok")

	require.NoError(t, AddReducer(s, sid, boom, func(old, _ int) int { panic("nope") }))
	require.NoError(t, AddReducer(s, sid, ok, func(old, delta int) int { return old + delta }))

	ch, cancel := GetBehavior(s, sid)
	defer cancel()
	_, _ = recvOrTimeout(t, ch, time.Second)

	ctx := context.Background()
	require.NoError(t, Dispatch(s, boom, 1).Do(ctx))
	require.NoError(t, Dispatch(s, ok, 1).Do(ctx))

	v, gotOK := recvOrTimeout(t, ch, time.Second)
	require.True(t, gotOK)
	assert.Equal(t, 11, v, "panicking reducer must discard only its own event")
}

func TestRemoveReducerStopsFutureUpdates(t *testing.T) {
	s := New()
	sid := AddState(s, "counter", 0)
	incr := id.EventID[int]("incr")
	require.NoError(t, AddReducer(s, sid, incr, func(old, delta int) int { return old + delta }))

	ch, cancel := GetBehavior(s, sid)
	defer cancel()
	_, _ = recvOrTimeout(t, ch, time.Second)

	ctx := context.Background()
	require.NoError(t, Dispatch(s, incr, 1).Do(ctx))
	_, _ = recvOrTimeout(t, ch, time.Second)

	require.NoError(t, RemoveReducer(s, sid, incr))
	require.NoError(t, Dispatch(s, incr, 1).Do(ctx))

	_, ok := recvOrTimeout(t, ch, 150*time.Millisecond)
	assert.False(t, ok, "no further emission once the only reducer is removed")
}

func TestConnectForwardsEventToEvent(t *testing.T) {
	s := New()
	source := id.EventID[int]("source")
	target := id.EventID[int]("target")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	cancelConn := Connect(ctx, s, source, target)
	defer cancelConn()

	targetCh, cancel := GetEventStream(s, target)
	defer cancel()

	require.NoError(t, Dispatch(s, source, 7).Do(ctx))
	v, ok := recvOrTimeout(t, targetCh, time.Second)
	require.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestAddDerivedStateSeedsInitialAndStartsLazily(t *testing.T) {
	s := New()
	started := make(chan struct{}, 1)
	did := AddDerivedState(s, "derived", Lazy, func(ctx context.Context) <-chan int {
		started <- struct{}{}
		out := make(chan int)
		go func() {
			<-ctx.Done()
			close(out)
		}()
		return out
	}, opt.Some(99))

	select {
	case <-started:
		t.Fatal("lazy derived state must not start before a subscriber attaches")
	case <-time.After(100 * time.Millisecond):
	}

	ch, cancel := GetBehavior(s, did)
	defer cancel()
	v, ok := recvOrTimeout(t, ch, time.Second)
	require.True(t, ok)
	assert.Equal(t, 99, v)

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("derived source should start once subscribed")
	}
}

func TestChildStoreResolvesToParentAndRoot(t *testing.T) {
	root := New(WithName("root"))
	mid := root.CreateChildStore(WithName("mid"))
	leaf := mid.CreateChildStore(WithName("leaf"))

	assert.Equal(t, mid, leaf.GetParentStore())
	assert.Equal(t, root, leaf.GetRootStore())
	assert.Nil(t, root.GetParentStore())
}
