package jwt

import (
	"github.com/AlessandroSilveira/PlanWriter-sub001/config"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/clock"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/logging"
	"go.uber.org/fx"
)

func NewJWTService(cfg *config.Config, clk clock.Clock, logger *logging.Service) *Service {
	return NewService(cfg, clk, logger)
}

type OptionalRevocationService struct {
	fx.In
	RevocationService RevocationService `optional:"true"`
}

func WireRevocationService(jwtSvc *Service, optRevocationSvc OptionalRevocationService) {
	if jwtSvc != nil && optRevocationSvc.RevocationService != nil {
		jwtSvc.SetRevocationService(optRevocationSvc.RevocationService)
	}
}

var Options = fx.Options(
	fx.Provide(NewJWTService),
	fx.Invoke(WireRevocationService),
)
