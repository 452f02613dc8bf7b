package ratelimit

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/webmitra3-cloud/webmitra.tech/internal/apperr"
	"github.com/webmitra3-cloud/webmitra.tech/services/logging"
	"github.com/webmitra3-cloud/webmitra.tech/services/metrics"
	"go.uber.org/zap"
)

const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

type Config struct {
	Name           string
	Store          Store
	Rate           int
	Period         time.Duration
	Message        string
	KeyGenerator   func(c echo.Context) string
	OnLimitReached func(c echo.Context, message string) error
	Metrics        *metrics.Metrics
	Logger         *logging.Service
}

// Middleware counts every request, allowed or not, against a fixed window
// per key. The caller owns cfg.Store and its lifetime.
func Middleware(cfg Config) echo.MiddlewareFunc {
	if cfg.Store == nil {
		panic("ratelimit: store is required")
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 10
	}
	if cfg.Period <= 0 {
		cfg.Period = time.Minute
	}
	if cfg.Message == "" {
		cfg.Message = "Too many requests. Please try again later."
	}
	if cfg.KeyGenerator == nil {
		cfg.KeyGenerator = DefaultKeyGenerator
	}
	if cfg.OnLimitReached == nil {
		cfg.OnLimitReached = DefaultOnLimitReached
	}
	logger := cfg.Logger.Named("ratelimit")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := cfg.Name + ":" + cfg.KeyGenerator(c)

			count, resetTime := cfg.Store.Increment(key, time.Now().Add(cfg.Period))
			remaining := max(cfg.Rate-count, 0)

			header := c.Response().Header()
			header.Set(HeaderLimit, strconv.Itoa(cfg.Rate))
			header.Set(HeaderRemaining, strconv.Itoa(remaining))
			header.Set(HeaderReset, strconv.FormatInt(resetTime.Unix(), 10))

			if count > cfg.Rate {
				header.Set("Retry-After", strconv.Itoa(retryAfter(resetTime)))
				cfg.Metrics.ObserveRateLimited(cfg.Name)
				logger.Warn("rate limit reached",
					zap.String("limiter", cfg.Name),
					zap.String("ip", c.RealIP()),
					zap.Int("count", count))
				return cfg.OnLimitReached(c, cfg.Message)
			}

			return next(c)
		}
	}
}

func DefaultKeyGenerator(c echo.Context) string {
	realIP := c.RealIP()
	if realIP == "" || realIP == "unknown" {
		realIP = "fallback"
	}
	return realIP
}

func DefaultOnLimitReached(c echo.Context, message string) error {
	return apperr.New(apperr.TooManyRequests, message)
}

func retryAfter(resetTime time.Time) int {
	seconds := int(time.Until(resetTime).Round(time.Second) / time.Second)
	return max(seconds, 1)
}
