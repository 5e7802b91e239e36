package scheduler

import (
	"context"

	"github.com/smallbiznis/karat/internal/config"
	"github.com/smallbiznis/karat/internal/livesync"
	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(func(c *livesync.Coordinator) QuoteSweeper { return c }),
	fx.Provide(New),
	fx.Invoke(startLoop),
)

// startLoop runs the scheduler for the lifetime of the app; stop waits for the
// in-flight run to return.
func startLoop(lc fx.Lifecycle, cfg config.Config, sched *Scheduler) {
	if !cfg.Scheduler.Enabled {
		return
	}

	var (
		cancel context.CancelFunc
		done   = make(chan struct{})
	)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go func() {
				defer close(done)
				sched.RunForever(ctx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
