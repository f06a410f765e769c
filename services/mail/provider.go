package mail

import (
	"github.com/AlessandroSilveira/PlanWriter-sub001/config"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/logging"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/refreshtoken"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideMailService(cfg *config.Config, logger *logging.Service) (*Service, error) {
	return NewService(&cfg.Mail, cfg.App.Name, logger)
}

func ProvideReuseNotifier(db *gorm.DB, mailService *Service, logger *logging.Service) refreshtoken.SecurityNotifier {
	return NewReuseNotifier(db, mailService, logger)
}

var Options = fx.Options(
	fx.Provide(ProvideMailService),
	fx.Provide(ProvideReuseNotifier),
)
