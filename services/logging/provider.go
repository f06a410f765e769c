package logging

import (
	"github.com/AlessandroSilveira/PlanWriter-sub001/config"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(NewLoggingService),
)

func NewLoggingService(cfg *config.Config) (*Service, error) {
	loggingConfig := Config{
		Level:      LogLevel(cfg.Log.Level),
		Format:     cfg.Log.Format,
		OutputPath: cfg.Log.OutputPath,
	}

	return NewService(loggingConfig)
}
