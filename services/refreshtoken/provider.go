package refreshtoken

import (
	"github.com/AlessandroSilveira/PlanWriter-sub001/config"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/audit"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/clock"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type OptionalNotifier struct {
	fx.In
	Notifier SecurityNotifier `optional:"true"`
}

func ProvideRefreshTokenService(db *gorm.DB, cfg *config.Config, clk clock.Clock, logger *logging.Service, sink audit.Sink, opt OptionalNotifier) *Service {
	service := NewService(db, cfg, clk, logger, sink)

	if opt.Notifier != nil {
		service.SetSecurityNotifier(opt.Notifier)
	}

	if cfg.RefreshToken.CleanupInterval > 0 {
		service.StartCleanupWorker()
	}

	return service
}

var Options = fx.Options(
	fx.Provide(ProvideRefreshTokenService),
)
