package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/webmitra3-cloud/webmitra.tech/config"
	"github.com/webmitra3-cloud/webmitra.tech/services/logging"
	"go.uber.org/zap"
)

const HealthPath = "/api/health"

type Server struct {
	echo   *echo.Echo
	cfg    *config.Config
	logger *logging.Service

	mu       sync.Mutex
	listener net.Listener
}

func New(cfg *config.Config, logger *logging.Service) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler(logger)

	extractor, err := ipExtractor(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, err
	}
	e.IPExtractor = extractor

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(logging.RequestLogger(logger.Named("http"), HealthPath, cfg.Metrics.Path))
	e.Use(middleware.CORSWithConfig(corsConfig(cfg)))
	e.Use(middleware.SecureWithConfig(secureConfig(cfg)))
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	return &Server{
		echo:   e,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Start binds the listener before returning so startup failures surface to
// the caller; serving continues in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Address(), err)
	}

	s.mu.Lock()
	s.listener = ln
	s.echo.Listener = ln
	s.mu.Unlock()

	s.logger.Info("starting server", zap.String("address", ln.Addr().String()))

	go func() {
		if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server stopped unexpectedly", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.echo.Shutdown(ctx)
}

// Addr reports the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Group(prefix string, m ...echo.MiddlewareFunc) *echo.Group {
	return s.echo.Group(prefix, m...)
}

func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func corsConfig(cfg *config.Config) middleware.CORSConfig {
	return middleware.CORSConfig{
		AllowOrigins:     cfg.App.ClientOrigins,
		AllowCredentials: true,
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			cfg.CSRF.HeaderName,
		},
		ExposeHeaders: []string{
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
			echo.HeaderXRequestID,
		},
		MaxAge: 600,
	}
}

func secureConfig(cfg *config.Config) middleware.SecureConfig {
	secure := middleware.SecureConfig{
		XSSProtection:         "0",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		ReferrerPolicy:        "no-referrer",
	}
	if cfg.IsProduction() {
		secure.HSTSMaxAge = 15552000
	}
	return secure
}

// ipExtractor trusts X-Forwarded-For only from the configured proxies.
func ipExtractor(trusted []string) (echo.IPExtractor, error) {
	var options []echo.TrustOption
	for _, entry := range trusted {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			if ip := net.ParseIP(entry); ip != nil && ip.To4() != nil {
				entry += "/32"
			} else {
				entry += "/128"
			}
		}
		_, ipNet, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		options = append(options, echo.TrustIPRange(ipNet))
	}

	if len(options) == 0 {
		return echo.ExtractIPDirect(), nil
	}
	return echo.ExtractIPFromXFFHeader(options...), nil
}
