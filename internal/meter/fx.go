package meter

import (
	"github.com/tirtabill/tirtabill/internal/meter/repository"
	"github.com/tirtabill/tirtabill/internal/meter/service"
	"go.uber.org/fx"
)

var Module = fx.Module("meter",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
