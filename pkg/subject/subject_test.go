package subject

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvOrTimeout(t *testing.T, ch <-chan any, timeout time.Duration) (any, bool) {
	t.Helper()
	select {
	case v, ok := <-ch:
		return v, ok
	case <-time.After(timeout):
		return nil, false
	}
}

func constSource(values ...any) func(context.Context) <-chan Item {
	return func(ctx context.Context) <-chan Item {
		out := make(chan Item, len(values))
		for _, v := range values {
			out <- Item{Val: v}
		}
		// Left open: a closed channel counts as completion, after which the
		// hub rebuilds and restarts this source, emitting the values again.
		return out
	}
}

func TestBehaviorHubReplaysLastValueToNewSubscriber(t *testing.T) {
	h := NewBehaviorHub("b")
	require.NoError(t, h.AddSource("src", SourceLazy, constSource(1, 2, 3)))

	ch, cancel := h.Subscribe()
	defer cancel()

	v, ok := recvOrTimeout(t, ch, time.Second)
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = recvOrTimeout(t, ch, time.Second)
	require.True(t, ok)
	assert.Equal(t, 2, v)

	v, ok = recvOrTimeout(t, ch, time.Second)
	require.True(t, ok)
	assert.Equal(t, 3, v)

	ch2, cancel2 := h.Subscribe()
	defer cancel2()
	v, ok = recvOrTimeout(t, ch2, time.Second)
	require.True(t, ok)
	assert.Equal(t, 3, v, "late subscriber replays the last value synchronously")
}

func TestEventHubDoesNotReplay(t *testing.T) {
	h := NewEventHub("e")

	ch, cancel := h.Subscribe()
	defer cancel()

	require.NoError(t, h.AddSource("src", SourceLazy, constSource("a")))
	_, ok := recvOrTimeout(t, ch, time.Second)
	require.True(t, ok)

	ch2, cancel2 := h.Subscribe()
	defer cancel2()
	_, ok = recvOrTimeout(t, ch2, 100*time.Millisecond)
	assert.False(t, ok, "late subscriber to an event hub must not see a replayed value")
}

func TestDuplicateSourceNameRejected(t *testing.T) {
	h := NewBehaviorHub("b")
	require.NoError(t, h.AddSource("src", SourceLazy, constSource(1)))
	err := h.AddSource("src", SourceLazy, constSource(2))
	assert.ErrorIs(t, err, ErrDuplicateSource)
}

func TestLazySourceOnlyRunsWhileSubscribed(t *testing.T) {
	h := NewBehaviorHub("b")
	started := make(chan struct{}, 1)
	src := func(ctx context.Context) <-chan Item {
		started <- struct{}{}
		out := make(chan Item)
		go func() {
			<-ctx.Done()
			close(out)
		}()
		return out
	}
	require.NoError(t, h.AddSource("src", SourceLazy, src))

	select {
	case <-started:
		t.Fatal("lazy source must not start before any subscriber attaches")
	case <-time.After(100 * time.Millisecond):
	}

	_, cancel := h.Subscribe()
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("lazy source should start once a subscriber attaches")
	}
	cancel()
}

func TestStatefulSourceRunsWithoutSubscribers(t *testing.T) {
	h := NewBehaviorHub("b")
	started := make(chan struct{}, 1)
	src := func(ctx context.Context) <-chan Item {
		started <- struct{}{}
		out := make(chan Item)
		return out
	}
	require.NoError(t, h.AddSource("fold", SourceStateful, src))

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("stateful source must start immediately, independent of subscribers")
	}
}

func TestSourceErrorRebuildsWithoutPropagating(t *testing.T) {
	h := NewBehaviorHub("b")
	attempt := 0
	src := func(ctx context.Context) <-chan Item {
		attempt++
		out := make(chan Item, 1)
		if attempt == 1 {
			out <- Item{Err: errors.New("boom")}
			close(out)
		} else {
			out <- Item{Val: "recovered"}
		}
		return out
	}
	require.NoError(t, h.AddSource("src", SourceLazy, src))

	ch, cancel := h.Subscribe()
	defer cancel()

	v, ok := recvOrTimeout(t, ch, time.Second)
	require.True(t, ok, "subscriber must not observe the terminal error")
	assert.Equal(t, "recovered", v)
}

func TestExternalSubscriberCountNeverNegative(t *testing.T) {
	h := NewEventHub("e")
	_, cancel := h.Subscribe()
	cancel()
	cancel() // second call must be a no-op
	assert.Equal(t, 0, h.ExternalSubscriberCount())
}
