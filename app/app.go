package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/webmitra3-cloud/webmitra.tech/config"
	"github.com/webmitra3-cloud/webmitra.tech/openapi"
	"github.com/webmitra3-cloud/webmitra.tech/server"
	"github.com/webmitra3-cloud/webmitra.tech/services/logging"
	"github.com/webmitra3-cloud/webmitra.tech/session"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 30 * time.Second

type App struct {
	fx       *fx.App
	config   *config.Config
	logger   *logging.Service
	db       *gorm.DB
	server   *server.Server
	sessions *session.Service
	docs     *openapi.Document
}

// New builds the API from cfg, or from the environment when cfg is nil.
func New(cfg *config.Config) (*App, error) {
	b := NewApp()
	if cfg != nil {
		b.WithConfig(cfg)
	}
	return b.Build()
}

func (a *App) Start() error {
	return a.StartContext(context.Background())
}

func (a *App) StartContext(ctx context.Context) error {
	return a.fx.Start(ctx)
}

// Run starts the app and blocks until SIGINT or SIGTERM.
func (a *App) Run() {
	if err := a.Start(); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	a.logger.Info("received shutdown signal, stopping gracefully", zap.String("signal", sig.String()))

	if err := a.Stop(); err != nil {
		log.Printf("Failed to stop application gracefully: %v", err)
	}
}

func (a *App) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.fx.Stop(ctx); err != nil {
		a.logger.Error("failed to stop application gracefully", zap.Error(err))
		return err
	}
	return nil
}

func (a *App) Echo() *echo.Echo {
	return a.server.Echo()
}

func (a *App) Server() *server.Server {
	return a.server
}

// Addr is the bound listener address once started.
func (a *App) Addr() string {
	return a.server.Addr()
}

func (a *App) DB() *gorm.DB {
	return a.db
}

func (a *App) Logger() *logging.Service {
	return a.logger
}

func (a *App) Config() *config.Config {
	return a.config
}

func (a *App) Sessions() *session.Service {
	return a.sessions
}

func (a *App) Docs() *openapi.Document {
	return a.docs
}
