package audit

import (
	"context"

	"github.com/AlessandroSilveira/PlanWriter-sub001/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideSink(lc fx.Lifecycle, db *gorm.DB, logger *logging.Service) Sink {
	sink := NewDBSink(db, logger, 256)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sink.Close()
			return nil
		},
	})

	return sink
}

var Options = fx.Options(
	fx.Provide(ProvideSink),
)
