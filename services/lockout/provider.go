package lockout

import (
	"github.com/AlessandroSilveira/PlanWriter-sub001/config"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/clock"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/logging"
	"go.uber.org/fx"
)

func NewProvider(cfg *config.Config, clk clock.Clock, logger *logging.Service) *Guard {
	return NewGuard(cfg, clk, logger)
}

var Options = fx.Options(
	fx.Provide(NewProvider),
)
