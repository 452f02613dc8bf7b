package database

import (
	"fmt"
	"time"

	"github.com/webmitra3-cloud/webmitra.tech/config"
	"github.com/webmitra3-cloud/webmitra.tech/services/logging"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type ModelsOption struct {
	models []any
}

func WithModels(models ...any) *ModelsOption {
	return &ModelsOption{models: models}
}

func ProvideDatabase(cfg *config.Config, modelsOpt *ModelsOption, logger *logging.Service) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: newGormLogger(cfg, logger)}

	var db *gorm.DB
	var err error

	switch cfg.Database.Driver {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(cfg.Database.DSN), gormCfg)
	case "postgres", "postgresql":
		db, err = gorm.Open(postgres.Open(cfg.Database.DSN), gormCfg)
	case "mysql":
		db, err = gorm.Open(mysql.Open(cfg.Database.DSN), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: sqlite, postgres, mysql)", cfg.Database.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Database.Driver == "sqlite" {
		// sqlite allows one writer; :memory: databases are per connection
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access database pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
		if err := sqlDB.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
	}

	if cfg.Database.AutoMigrate && modelsOpt != nil && len(modelsOpt.models) > 0 {
		if err := db.AutoMigrate(modelsOpt.models...); err != nil {
			return nil, fmt.Errorf("failed to auto-migrate models: %w", err)
		}
		logger.Info("database migrated", zap.String("driver", cfg.Database.Driver), zap.Int("models", len(modelsOpt.models)))
	}

	return db, nil
}

func newGormLogger(cfg *config.Config, logger *logging.Service) gormlogger.Interface {
	if logger == nil || logger.Logger() == nil {
		return gormlogger.Default.LogMode(gormlogger.Silent)
	}

	level := gormlogger.Warn
	if cfg.Log.Level == string(logging.Debug) {
		level = gormlogger.Info
	}

	return gormlogger.New(
		zap.NewStdLog(logger.Named("gorm").Logger()),
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
		},
	)
}
