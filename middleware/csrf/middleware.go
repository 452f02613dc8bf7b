package csrf

import (
	"errors"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/webmitra3-cloud/webmitra.tech/internal/apperr"
	"github.com/webmitra3-cloud/webmitra.tech/services/csrf"
	"github.com/webmitra3-cloud/webmitra.tech/services/logging"
	"github.com/webmitra3-cloud/webmitra.tech/services/metrics"
	"go.uber.org/zap"
)

type Validator interface {
	Validate(cookieValue, headerValue, method string) error
}

type Config struct {
	Skipper    middleware.Skipper
	CookieName string
	HeaderName string
	Metrics    *metrics.Metrics
	Logger     *logging.Service
}

// Require applies the double-submit check to mutating requests.
func Require(validator Validator, cfg Config) echo.MiddlewareFunc {
	if cfg.Skipper == nil {
		cfg.Skipper = middleware.DefaultSkipper
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "wm_csrf"
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = "X-CSRF-Token"
	}
	logger := cfg.Logger.Named("csrf")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper(c) {
				return next(c)
			}

			var cookieValue string
			if cookie, err := c.Cookie(cfg.CookieName); err == nil {
				cookieValue = cookie.Value
			}
			headerValue := c.Request().Header.Get(cfg.HeaderName)

			err := validator.Validate(cookieValue, headerValue, c.Request().Method)
			if err == nil {
				return next(c)
			}

			kind, reason := apperr.CsrfMismatch, "mismatch"
			if errors.Is(err, csrf.ErrCsrfMissing) {
				kind, reason = apperr.CsrfMissing, "missing"
			}
			cfg.Metrics.ObserveCSRFRejection(reason)
			logger.Warn("csrf check failed",
				zap.String("reason", reason),
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.String("ip", c.RealIP()))

			return apperr.Wrap(kind, "CSRF token "+reason, err)
		}
	}
}

func SkipPaths(paths ...string) middleware.Skipper {
	skip := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		skip[p] = struct{}{}
	}
	return func(c echo.Context) bool {
		_, ok := skip[c.Path()]
		return ok
	}
}
