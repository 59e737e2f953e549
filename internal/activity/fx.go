package activity

import (
	"context"

	activitydomain "github.com/tirtabill/tirtabill/internal/activity/domain"
	"github.com/tirtabill/tirtabill/internal/activity/repository"
	"github.com/tirtabill/tirtabill/internal/activity/service"
	"go.uber.org/fx"
)

var Module = fx.Module("activity.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(func(s *service.Service) activitydomain.Service { return s }),
	fx.Invoke(registerFlusher),
)

// registerFlusher runs the retry loop for parked feed entries and drains
// whatever is left on shutdown.
func registerFlusher(lc fx.Lifecycle, s *service.Service) {
	loopCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.RunFlusher(loopCtx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			s.FlushPending(ctx)
			return nil
		},
	})
}
