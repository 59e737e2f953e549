package tariff

import (
	"github.com/tirtabill/tirtabill/internal/tariff/repository"
	"github.com/tirtabill/tirtabill/internal/tariff/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tariff",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
