package totp

import (
	"github.com/AlessandroSilveira/PlanWriter-sub001/config"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/clock"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func NewProvider(cfg *config.Config, db *gorm.DB, clk clock.Clock, logger *logging.Service) *Service {
	service := NewService(cfg, db, clk, logger)

	if cfg.MFA.CleanupInterval > 0 {
		service.StartCleanupWorker()
	}

	return service
}

var Module = fx.Options(
	fx.Provide(NewProvider),
)
