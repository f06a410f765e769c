package auth

import (
	"github.com/AlessandroSilveira/PlanWriter-sub001/config"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/audit"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/backupcodes"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/clock"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/jwt"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/lockout"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/logging"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/refreshtoken"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/totp"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func NewProvider(db *gorm.DB, cfg *config.Config, clk clock.Clock, logger *logging.Service, guard *lockout.Guard, sessions *refreshtoken.Service, tokens *jwt.Service, mfa *totp.Service, backup *backupcodes.Service, sink audit.Sink) *Service {
	return NewService(db, cfg, clk, logger, guard, sessions, tokens, mfa, backup, sink)
}

var Options = fx.Options(
	fx.Provide(NewProvider),
)
