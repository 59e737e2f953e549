package billing

import (
	"github.com/tirtabill/tirtabill/internal/billing/repository"
	"github.com/tirtabill/tirtabill/internal/billing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billing",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
