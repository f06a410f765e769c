package backupcodes

import (
	"github.com/AlessandroSilveira/PlanWriter-sub001/config"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/clock"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func NewProvider(cfg *config.Config, db *gorm.DB, clk clock.Clock, logger *logging.Service) *Service {
	return NewService(cfg, db, clk, logger)
}

var Options = fx.Options(
	fx.Provide(NewProvider),
)
