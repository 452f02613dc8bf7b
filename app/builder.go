package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/webmitra3-cloud/webmitra.tech/config"
	"github.com/webmitra3-cloud/webmitra.tech/database"
	adminhandler "github.com/webmitra3-cloud/webmitra.tech/handlers/admin"
	authhandler "github.com/webmitra3-cloud/webmitra.tech/handlers/auth"
	"github.com/webmitra3-cloud/webmitra.tech/middleware/ratelimit"
	"github.com/webmitra3-cloud/webmitra.tech/models"
	"github.com/webmitra3-cloud/webmitra.tech/server"
	"github.com/webmitra3-cloud/webmitra.tech/services/account"
	"github.com/webmitra3-cloud/webmitra.tech/services/audit"
	"github.com/webmitra3-cloud/webmitra.tech/services/auth"
	"github.com/webmitra3-cloud/webmitra.tech/services/csrf"
	"github.com/webmitra3-cloud/webmitra.tech/services/logging"
	"github.com/webmitra3-cloud/webmitra.tech/services/metrics"
	"github.com/webmitra3-cloud/webmitra.tech/services/refreshstore"
	"github.com/webmitra3-cloud/webmitra.tech/services/token"
	"github.com/webmitra3-cloud/webmitra.tech/session"
	"go.uber.org/fx"
)

type AppBuilder struct {
	config    *config.Config
	fxOptions []fx.Option
	seedAdmin bool
	errors    []error
}

func NewApp() *AppBuilder {
	return &AppBuilder{
		fxOptions: make([]fx.Option, 0),
		errors:    make([]error, 0),
	}
}

func (b *AppBuilder) WithConfig(cfg *config.Config) *AppBuilder {
	if cfg == nil {
		b.addError("config cannot be nil")
		return b
	}
	if err := cfg.Validate(); err != nil {
		b.errors = append(b.errors, fmt.Errorf("invalid config: %w", err))
		return b
	}
	b.config = cfg
	return b
}

func (b *AppBuilder) WithAutoConfig() *AppBuilder {
	cfg := &config.Config{}
	if err := config.LoadConfig(cfg); err != nil {
		b.errors = append(b.errors, fmt.Errorf("failed to load config: %w", err))
		return b
	}
	b.config = cfg
	return b
}

// WithSeedAdmin upserts the configured admin account before the server
// starts accepting requests.
func (b *AppBuilder) WithSeedAdmin() *AppBuilder {
	b.seedAdmin = true
	return b
}

func (b *AppBuilder) WithFxOptions(opts ...fx.Option) *AppBuilder {
	b.fxOptions = append(b.fxOptions, opts...)
	return b
}

func (b *AppBuilder) Build() (*App, error) {
	if b.config == nil && len(b.errors) == 0 {
		b.WithAutoConfig()
	}
	if len(b.errors) > 0 {
		return nil, fmt.Errorf("configuration errors: %w", errors.Join(b.errors...))
	}

	app := &App{config: b.config}

	fxApp := fx.New(append(b.buildFxOptions(),
		fx.Populate(&app.logger, &app.db, &app.server, &app.sessions, &app.docs),
	)...)
	if err := fxApp.Err(); err != nil {
		return nil, fmt.Errorf("failed to build application: %w", err)
	}
	app.fx = fxApp

	return app, nil
}

func (b *AppBuilder) addError(msg string) {
	b.errors = append(b.errors, errors.New(msg))
}

// Hooks stop in reverse order, so the server is appended last to drain
// requests before the database closes.
func (b *AppBuilder) buildFxOptions() []fx.Option {
	options := []fx.Option{
		fx.NopLogger,
		config.NewProvider(b.config),
		logging.Module,
		fx.Supply(database.WithModels(models.All()...)),
		database.Module,
		metrics.Module,
		token.Module,
		auth.Module,
		account.Module,
		audit.Module,
		fx.Provide(func(svc *audit.Service) session.AttemptRecorder { return svc }),
		refreshstore.Module,
		csrf.Module,
		session.Module,
		ratelimit.Module,
		authhandler.Module,
		adminhandler.Module,
		fx.Provide(newDocument),
	}

	if b.seedAdmin {
		options = append(options, fx.Invoke(seedAdminOnStart))
	}

	options = append(options, b.fxOptions...)
	options = append(options,
		server.Module,
		fx.Invoke(registerRoutes),
	)
	return options
}

func seedAdminOnStart(lc fx.Lifecycle, cfg *config.Config, sessions *session.Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_, err := sessions.SeedAdmin(ctx, session.SeedInputFromConfig(cfg))
			return err
		},
	})
}
