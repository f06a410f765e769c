package revocation

import (
	"github.com/AlessandroSilveira/PlanWriter-sub001/config"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/clock"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/jwt"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func NewProvider(cfg *config.Config, db *gorm.DB, clk clock.Clock, logger *logging.Service) *Service {
	service := NewService(cfg, db, clk, logger)

	if cfg.Revocation.Enabled && cfg.Revocation.CleanupPeriod > 0 {
		service.StartCleanupWorker()
	}

	return service
}

var Options = fx.Options(
	fx.Provide(NewProvider),
	fx.Provide(func(s *Service) jwt.RevocationService { return s }),
)
