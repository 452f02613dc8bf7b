package app

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/webmitra3-cloud/webmitra.tech/config"
	adminhandler "github.com/webmitra3-cloud/webmitra.tech/handlers/admin"
	authhandler "github.com/webmitra3-cloud/webmitra.tech/handlers/auth"
	authmw "github.com/webmitra3-cloud/webmitra.tech/middleware/auth"
	csrfmw "github.com/webmitra3-cloud/webmitra.tech/middleware/csrf"
	"github.com/webmitra3-cloud/webmitra.tech/middleware/ratelimit"
	"github.com/webmitra3-cloud/webmitra.tech/models"
	"github.com/webmitra3-cloud/webmitra.tech/openapi"
	"github.com/webmitra3-cloud/webmitra.tech/server"
	"github.com/webmitra3-cloud/webmitra.tech/services/csrf"
	"github.com/webmitra3-cloud/webmitra.tech/services/logging"
	"github.com/webmitra3-cloud/webmitra.tech/services/metrics"
	"github.com/webmitra3-cloud/webmitra.tech/services/token"
	"go.uber.org/fx"
)

type routeParams struct {
	fx.In

	Config  *config.Config
	Server  *server.Server
	Tokens  *token.Service
	CSRF    *csrf.Service
	Limiter *ratelimit.LoginLimiter
	Metrics *metrics.Metrics
	Docs    *openapi.Document
	Auth    *authhandler.Handler
	Admin   *adminhandler.Handler
	Logger  *logging.Service
}

func registerRoutes(p routeParams) {
	requireAuth := authmw.RequireAuth(p.Tokens)
	csrfConfig := csrfmw.Config{
		CookieName: p.Config.Cookie.CSRFName,
		HeaderName: p.Config.CSRF.HeaderName,
		Metrics:    p.Metrics,
		Logger:     p.Logger,
	}
	requireCSRF := csrfmw.Require(p.CSRF, csrfConfig)
	requireAdmin := authmw.RequireRole(models.RoleAdmin)

	api := p.Server.Group("/api")
	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{OK: true})
	})

	// Login predates any CSRF cookie; refresh is exempt unless configured.
	exempt := []string{"/api/auth/login"}
	if !p.Config.CSRF.RequireOnRefresh {
		exempt = append(exempt, "/api/auth/refresh")
	}
	authCSRF := csrfConfig
	authCSRF.Skipper = csrfmw.SkipPaths(exempt...)

	auth := api.Group("/auth", csrfmw.Require(p.CSRF, authCSRF))
	auth.GET("/csrf", p.Auth.CSRF)
	auth.POST("/login", p.Auth.Login, p.Limiter.Middleware())
	auth.POST("/refresh", p.Auth.Refresh)
	auth.POST("/logout", p.Auth.Logout)
	auth.GET("/me", p.Auth.Me, requireAuth)

	// CSRF only checks mutating methods, so reads pass with the bearer alone.
	admin := api.Group("/admin", requireAuth, requireCSRF)
	admin.GET("/dashboard", p.Admin.Dashboard)
	admin.GET("/users", p.Admin.ListUsers, requireAdmin)
	admin.POST("/users", p.Admin.CreateUser, requireAdmin)
	admin.DELETE("/users/:id", p.Admin.DeleteUser, requireAdmin)
	admin.POST("/users/:id/revoke", p.Admin.RevokeUser, requireAdmin)

	e := p.Server.Echo()
	if p.Config.Metrics.Enabled {
		e.GET(p.Config.Metrics.Path, echo.WrapHandler(p.Metrics.Handler()))
	}
	e.GET("/openapi.json", p.Docs.JSONHandler())
	e.GET("/openapi.yaml", p.Docs.YAMLHandler())
}
