package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/signalcore/pkg/effect"
	"github.com/cuemby/signalcore/pkg/id"
	"github.com/cuemby/signalcore/pkg/opt"
	"github.com/cuemby/signalcore/pkg/reactorlog"
	"github.com/cuemby/signalcore/pkg/store"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a small counter-plus-effect graph and print every transition",
	RunE:  runDemo,
}

func init() {
	demoCmd.Flags().Int("increments", 5, "Number of increment events to dispatch")
	demoCmd.Flags().Duration("interval", 300*time.Millisecond, "Delay between dispatches")
}

func runDemo(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	increments, _ := cmd.Flags().GetInt("increments")
	interval, _ := cmd.Flags().GetDuration("interval")

	log := reactorlog.WithComponent("demo")

	s := store.New(store.WithLogger(reactorlog.NewAdapter(log)), store.WithName("demo"))

	counter := store.AddState(s, "counter", 0)
	incr := id.EventID[int]("demo.incr")
	_ = store.AddReducer(s, counter, incr, func(old, delta int) int { return old + delta })

	doubleID := id.NewEffectID[int, int]("demo.double")
	_ = store.AddEffect(s, doubleID, func(_ context.Context, in int, _ store.EffectContext, _ opt.Optional[int], _ opt.Optional[int]) <-chan store.Result[int] {
		out := make(chan store.Result[int], 1)
		out <- store.Result[int]{Value: in * 2}
		close(out)
		return out
	})
	_, outputs := effect.Setup(ctx, s, "demo.double", effect.Config[int, int]{Input: counter, Effect: doubleID})

	counterCh, cancelCounter := store.GetBehavior(s, counter)
	defer cancelCounter()
	resultCh, cancelResult := store.GetBehavior(s, outputs.Result)
	defer cancelResult()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-counterCh:
				if !ok {
					return
				}
				fmt.Printf("counter = %d\n", v)
			}
		}
	}()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-resultCh:
				if !ok {
					return
				}
				fmt.Printf("doubled  = %d\n", v)
			}
		}
	}()

	for i := 0; i < increments; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
		if err := store.Dispatch(s, incr, 1).Do(ctx); err != nil {
			return err
		}
	}
	return store.CompleteAllSignals(ctx, s)
}
