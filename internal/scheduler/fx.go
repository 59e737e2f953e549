package scheduler

import (
	"context"

	"go.uber.org/fx"

	"github.com/tirtabill/tirtabill/internal/config"
)

var Module = fx.Module("scheduler",
	fx.Provide(New),
	fx.Invoke(Register),
)

// Register starts the sweep loop for the lifetime of the app. Replicas
// that only serve HTTP disable it with SCHEDULER_ENABLED=false.
func Register(lc fx.Lifecycle, cfg config.Config, sched *Scheduler) {
	if !cfg.SchedulerEnabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			done := make(chan struct{})
			go func() {
				defer close(done)
				sched.RunForever(ctx)
			}()

			lc.Append(fx.Hook{
				OnStop: func(stopCtx context.Context) error {
					cancel()
					select {
					case <-done:
						return nil
					case <-stopCtx.Done():
						return stopCtx.Err()
					}
				},
			})
			return nil
		},
	})
}
