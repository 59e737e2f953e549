package reading

import (
	"github.com/tirtabill/tirtabill/internal/reading/repository"
	"github.com/tirtabill/tirtabill/internal/reading/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reading",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
