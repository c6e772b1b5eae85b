package effect

import (
	"context"

	"github.com/cuemby/signalcore/pkg/opt"
)

// combineLatest4 fans four channels into one, emitting a joined quad every
// time any one of them produces a value, once all four have produced at
// least one value each (matching combineLatest's usual "waits for every
// source to have emitted once" start-up rule). The returned channel closes
// as soon as ctx is done or any one source closes.
func combineLatest4[I, R any](
	ctx context.Context,
	inputCh <-chan I,
	resultCh <-chan resultState[I, R],
	tokenCh <-chan *struct{},
	triggeredCh <-chan opt.Optional[I],
) <-chan quad[I, R] {
	out := make(chan quad[I, R])
	go func() {
		defer close(out)
		var cur quad[I, R]
		var haveInput, haveResult, haveToken, haveTrigger bool
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-inputCh:
				if !ok {
					return
				}
				cur.input = v
				haveInput = true
			case v, ok := <-resultCh:
				if !ok {
					return
				}
				cur.rs = v
				haveResult = true
			case v, ok := <-tokenCh:
				if !ok {
					return
				}
				cur.token = v
				haveToken = true
			case v, ok := <-triggeredCh:
				if !ok {
					return
				}
				cur.trigger = v
				haveTrigger = true
			}
			if !(haveInput && haveResult && haveToken && haveTrigger) {
				continue
			}
			select {
			case out <- cur:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
