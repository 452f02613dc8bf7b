package app

import (
	"net/http"

	"github.com/webmitra3-cloud/webmitra.tech/config"
	adminhandler "github.com/webmitra3-cloud/webmitra.tech/handlers/admin"
	authhandler "github.com/webmitra3-cloud/webmitra.tech/handlers/auth"
	"github.com/webmitra3-cloud/webmitra.tech/middleware/ratelimit"
	"github.com/webmitra3-cloud/webmitra.tech/models"
	"github.com/webmitra3-cloud/webmitra.tech/openapi"
	"github.com/webmitra3-cloud/webmitra.tech/server"
)

const (
	schemeBearer  = "bearerAuth"
	schemeRefresh = "refreshCookie"
	schemeCSRF    = "csrfHeader"
)

type HealthResponse struct {
	OK bool `json:"ok" example:"true"`
}

// newDocument describes every route registered by registerRoutes.
func newDocument(cfg *config.Config) *openapi.Document {
	doc := openapi.New(cfg.App.Name, cfg.App.Version).
		Description("Session and account API for the WebMitra.Tech site. Access tokens travel as bearer headers, refresh tokens as httpOnly cookies, and mutating requests carry a double-submit CSRF header.").
		Server("/", "this server").
		Tag("health", "Liveness").
		Tag("auth", "Login, silent refresh and logout").
		Tag("admin", "Account management").
		BearerAuth(schemeBearer, "Short-lived access token returned by login and refresh").
		CookieAuth(schemeRefresh, cfg.Cookie.RefreshName, "httpOnly refresh token cookie, rotated on every refresh").
		HeaderAuth(schemeCSRF, cfg.CSRF.HeaderName, "Must equal the "+cfg.Cookie.CSRFName+" cookie on mutating requests").
		Schema("Error", server.ErrorResponse{})

	errBody := server.ErrorResponse{}

	doc.Operation(http.MethodGet, server.HealthPath).
		ID("health").
		Summary("Health check").
		Tags("health").
		Response(http.StatusOK, HealthResponse{}, "Service is up").
		Register()

	doc.Operation(http.MethodGet, "/api/auth/csrf").
		ID("getCsrf").
		Summary("Issue a CSRF token").
		Description("Sets the CSRF cookie and returns the same token for the request header.").
		Tags("auth").
		Response(http.StatusOK, authhandler.CSRFResponse{}, "Token issued").
		Errors(errBody, http.StatusInternalServerError).
		Register()

	doc.Operation(http.MethodPost, "/api/auth/login").
		ID("login").
		Summary("Log in with email and password").
		Tags("auth").
		Body(authhandler.LoginRequest{}, "Credentials").
		Response(http.StatusOK, authhandler.LoginResponse{}, "Session established; refresh and CSRF cookies are set").
		ResponseHeader(http.StatusOK, ratelimit.HeaderLimit, "Attempts allowed per window").
		ResponseHeader(http.StatusOK, ratelimit.HeaderRemaining, "Attempts left in the window").
		Errors(errBody, http.StatusBadRequest, http.StatusUnauthorized, http.StatusTooManyRequests).
		Register()

	refresh := doc.Operation(http.MethodPost, "/api/auth/refresh").
		ID("refresh").
		Summary("Rotate the refresh token").
		Description("Consumes the refresh cookie once and returns a new access token. A replayed or tampered cookie clears both cookies.").
		Tags("auth").
		Response(http.StatusOK, authhandler.RefreshResponse{}, "New access token; cookies rotated").
		Errors(errBody, http.StatusUnauthorized)
	if cfg.CSRF.RequireOnRefresh {
		refresh.AllOf(schemeRefresh, schemeCSRF).Errors(errBody, http.StatusForbidden)
	} else {
		refresh.Security(schemeRefresh)
	}
	refresh.Register()

	doc.Operation(http.MethodPost, "/api/auth/logout").
		ID("logout").
		Summary("Log out").
		Description("Clears the stored refresh hash when the cookie verifies, and always clears the cookies.").
		Tags("auth").
		Response(http.StatusOK, authhandler.MessageResponse{}, "Logged out").
		Errors(errBody, http.StatusForbidden).
		Security(schemeCSRF).
		Register()

	doc.Operation(http.MethodGet, "/api/auth/me").
		ID("me").
		Summary("Current account").
		Tags("auth").
		Response(http.StatusOK, authhandler.MeResponse{}, "Public profile").
		Errors(errBody, http.StatusUnauthorized, http.StatusNotFound).
		Security(schemeBearer).
		Register()

	doc.Operation(http.MethodGet, "/api/admin/dashboard").
		ID("dashboard").
		Summary("Dashboard totals").
		Tags("admin").
		Response(http.StatusOK, adminhandler.DashboardResponse{}, "Account and failed-login counts").
		Errors(errBody, http.StatusUnauthorized).
		Security(schemeBearer).
		Register()

	doc.Operation(http.MethodGet, "/api/admin/users").
		ID("listUsers").
		Summary("List accounts").
		Description("Requires role " + string(models.RoleAdmin) + ".").
		Tags("admin").
		Response(http.StatusOK, adminhandler.UserListResponse{}, "Public profiles").
		Errors(errBody, http.StatusUnauthorized, http.StatusForbidden).
		Security(schemeBearer).
		Register()

	doc.Operation(http.MethodPost, "/api/admin/users").
		ID("createUser").
		Summary("Create an account").
		Description("Requires role " + string(models.RoleAdmin) + ".").
		Tags("admin").
		Body(adminhandler.CreateUserRequest{}, "New account").
		Response(http.StatusCreated, models.Profile{}, "Created").
		Errors(errBody, http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusConflict).
		AllOf(schemeBearer, schemeCSRF).
		Register()

	doc.Operation(http.MethodDelete, "/api/admin/users/:id").
		ID("deleteUser").
		Summary("Delete an account").
		Description("Requires role " + string(models.RoleAdmin) + ". An admin cannot delete their own account.").
		Tags("admin").
		PathParam("id", "Account id").
		Response(http.StatusOK, adminhandler.MessageResponse{}, "Deleted").
		Errors(errBody, http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound).
		AllOf(schemeBearer, schemeCSRF).
		Register()

	doc.Operation(http.MethodPost, "/api/admin/users/:id/revoke").
		ID("revokeUser").
		Summary("Revoke an account's session").
		Description("Clears the stored refresh hash so the next refresh fails.").
		Tags("admin").
		PathParam("id", "Account id").
		Response(http.StatusOK, adminhandler.MessageResponse{}, "Revoked").
		Errors(errBody, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound).
		AllOf(schemeBearer, schemeCSRF).
		Register()

	return doc
}
