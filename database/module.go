package database

import (
	"context"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Options(
	fx.Provide(ProvideDatabase),
	fx.Invoke(func(lc fx.Lifecycle, db *gorm.DB) {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			},
		})
	}),
)
