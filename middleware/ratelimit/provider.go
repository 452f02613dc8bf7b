package ratelimit

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/webmitra3-cloud/webmitra.tech/config"
	"github.com/webmitra3-cloud/webmitra.tech/services/logging"
	"github.com/webmitra3-cloud/webmitra.tech/services/metrics"
	"go.uber.org/fx"
)

const LoginMessage = "Too many login attempts. Please try again later."

// LoginLimiter guards the login route.
type LoginLimiter struct {
	Config
}

func ProvideMemoryStore(lc fx.Lifecycle) *MemoryStore {
	store := NewMemoryStore(0)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			store.Close()
			return nil
		},
	})
	return store
}

func ProvideLoginLimiter(cfg *config.Config, store *MemoryStore, m *metrics.Metrics, logger *logging.Service) *LoginLimiter {
	return &LoginLimiter{Config: Config{
		Name:    "login",
		Store:   store,
		Rate:    cfg.RateLimit.LoginRate,
		Period:  cfg.RateLimit.LoginPeriod,
		Message: LoginMessage,
		Metrics: m,
		Logger:  logger,
	}}
}

func (l *LoginLimiter) Middleware() echo.MiddlewareFunc {
	return Middleware(l.Config)
}

var Module = fx.Module("ratelimit",
	fx.Provide(ProvideMemoryStore),
	fx.Provide(ProvideLoginLimiter),
)
