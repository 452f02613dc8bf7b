package logging

import (
	"context"

	"github.com/webmitra3-cloud/webmitra.tech/config"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(NewLoggingService),
	fx.Invoke(func(lc fx.Lifecycle, logger *Service) {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				// stdout cannot be synced on most platforms
				_ = logger.Sync()
				return nil
			},
		})
	}),
)

func NewLoggingService(cfg *config.Config) (*Service, error) {
	return NewService(Config{
		Level:      LogLevel(cfg.Log.Level),
		Format:     cfg.Log.Format,
		OutputPath: cfg.Log.Output,
	})
}
