package app

import (
	"context"

	"github.com/AlessandroSilveira/PlanWriter-sub001/config"
	"github.com/AlessandroSilveira/PlanWriter-sub001/database"
	"github.com/AlessandroSilveira/PlanWriter-sub001/handlers"
	"github.com/AlessandroSilveira/PlanWriter-sub001/server"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/audit"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/auth"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/backupcodes"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/clock"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/jwt"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/lockout"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/logging"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/mail"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/refreshtoken"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/revocation"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/totp"
	"go.uber.org/fx"
)

// App wraps the fx graph for the authentication service.
type App struct {
	fx *fx.App
}

// Models is every persisted type the service owns, in one place so the
// migration set and the test fixtures cannot drift apart.
func Models() []any {
	return []any{
		&auth.User{},
		&refreshtoken.RefreshToken{},
		&totp.MfaSettings{},
		&totp.UsedCode{},
		&backupcodes.BackupCode{},
		&revocation.RevokedJTI{},
		&audit.Event{},
	}
}

// New assembles the application. Pass a nil config to load it from the
// environment.
func New(cfg *config.Config, extra ...fx.Option) *App {
	options := []fx.Option{
		config.NewProvider(cfg),
		fx.Provide(func() *database.ModelsOption {
			return database.WithModels(Models()...)
		}),
		logging.Module,
		clock.Options,
		database.Module,
		audit.Options,
		lockout.Options,
		jwt.Options,
		revocation.Options,
		mail.Options,
		refreshtoken.Options,
		totp.Module,
		backupcodes.Options,
		auth.Options,
		server.Options,
		handlers.Options,
		fx.NopLogger,
	}
	options = append(options, extra...)

	return &App{fx: fx.New(options...)}
}

// Run blocks until the process receives a termination signal, then
// stops the graph gracefully.
func (a *App) Run() {
	a.fx.Run()
}

func (a *App) Start(ctx context.Context) error {
	return a.fx.Start(ctx)
}

func (a *App) Stop(ctx context.Context) error {
	return a.fx.Stop(ctx)
}

func (a *App) Err() error {
	return a.fx.Err()
}
