package payment

import (
	"github.com/tirtabill/tirtabill/internal/payment/repository"
	"github.com/tirtabill/tirtabill/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
