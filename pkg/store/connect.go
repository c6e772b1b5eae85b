package store

import (
	"context"

	"github.com/cuemby/signalcore/pkg/id"
)

// Connect feeds every value observed on source into target by dispatching it
// (Do is called synchronously per value, from a dedicated forwarding
// goroutine, so a slow or blocked target never backs up source's own
// subscriber channel beyond its buffer). Returns a function that detaches
// the connection; the background forwarding goroutine exits once either
// source's subscription is cancelled or ctx is done.
func Connect[T any](ctx context.Context, s *Store, source id.ID[T], target id.ID[T]) func() {
	in, cancelSub := GetEventStream(s, source)
	if id.IsBehaviorID(source) {
		in, cancelSub = GetBehavior(s, source)
	}
	connCtx, cancel := context.WithCancel(ctx)
	go func() {
		defer cancelSub()
		for {
			select {
			case <-connCtx.Done():
				return
			case v, ok := <-in:
				if !ok {
					return
				}
				_ = Dispatch(s, target, v).Do(connCtx)
			}
		}
	}()
	return cancel
}

// ConnectObservable feeds every value produced by an arbitrary external
// source function into target, without requiring the source to already be a
// registered identifier — the bridge used when wiring a signals-factory's
// external collaborator (an HTTP poller, a filesystem watcher) straight into
// a store identifier.
func ConnectObservable[T any](ctx context.Context, s *Store, source func(context.Context) <-chan T, target id.ID[T]) func() {
	connCtx, cancel := context.WithCancel(ctx)
	in := source(connCtx)
	go func() {
		for {
			select {
			case <-connCtx.Done():
				return
			case v, ok := <-in:
				if !ok {
					return
				}
				_ = Dispatch(s, target, v).Do(connCtx)
			}
		}
	}()
	return cancel
}
