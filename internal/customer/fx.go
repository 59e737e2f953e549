package customer

import (
	"github.com/tirtabill/tirtabill/internal/customer/repository"
	"github.com/tirtabill/tirtabill/internal/customer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("customer",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
