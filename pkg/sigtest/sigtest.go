/*
Package sigtest provides small testify-based helpers for asserting on signal
channels (the <-chan T returned by store.GetBehavior / store.GetEventStream)
without every package under test re-implementing the same
collect-with-timeout loop.
*/
package sigtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// CollectN reads exactly n values from ch, failing the test if timeout
// elapses first.
func CollectN[T any](t testing.TB, ch <-chan T, n int, timeout time.Duration) []T {
	t.Helper()
	out := make([]T, 0, n)
	deadline := time.After(timeout)
	for len(out) < n {
		select {
		case v, ok := <-ch:
			require.True(t, ok, "channel closed after %d of %d expected values", len(out), n)
			out = append(out, v)
		case <-deadline:
			t.Fatalf("timed out after %d of %d expected values", len(out), n)
		}
	}
	return out
}

// ExpectSequence asserts that the next len(want) values read from ch equal
// want, in order.
func ExpectSequence[T any](t testing.TB, ch <-chan T, timeout time.Duration, want ...T) {
	t.Helper()
	got := CollectN(t, ch, len(want), timeout)
	assert.Equal(t, want, got)
}

// ExpectNone asserts that ch produces no value within d — used to assert a
// source has stopped, or that an operation had no observable effect.
func ExpectNone[T any](t testing.TB, ch <-chan T, d time.Duration) {
	t.Helper()
	select {
	case v, ok := <-ch:
		if ok {
			t.Fatalf("expected no value within %s, got %+v", d, v)
		}
	case <-time.After(d):
	}
}

// ExpectEventually polls fn until it returns true or timeout elapses,
// sleeping interval between attempts — used for assertions against state
// reachable only asynchronously (e.g. a hub's subscriber refcount dropping
// to zero after a cancel).
func ExpectEventually(t testing.TB, timeout, interval time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if fn() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("condition never became true")
		}
		time.Sleep(interval)
	}
}
