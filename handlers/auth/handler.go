package auth

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/webmitra3-cloud/webmitra.tech/config"
	"github.com/webmitra3-cloud/webmitra.tech/internal/apperr"
	"github.com/webmitra3-cloud/webmitra.tech/internal/validate"
	authmw "github.com/webmitra3-cloud/webmitra.tech/middleware/auth"
	"github.com/webmitra3-cloud/webmitra.tech/models"
	"github.com/webmitra3-cloud/webmitra.tech/services/account"
	"github.com/webmitra3-cloud/webmitra.tech/services/logging"
	"github.com/webmitra3-cloud/webmitra.tech/session"
	"go.uber.org/zap"
)

type LoginRequest struct {
	Email    string `json:"email" example:"admin@webmitra.tech"`
	Password string `json:"password" example:"Admin@12345"`
}

type LoginResponse struct {
	User        models.Profile `json:"user"`
	AccessToken string         `json:"accessToken"`
	CSRFToken   string         `json:"csrfToken"`
}

type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
	CSRFToken   string `json:"csrfToken"`
}

type CSRFResponse struct {
	OK        bool   `json:"ok"`
	CSRFToken string `json:"csrfToken"`
}

type MeResponse struct {
	User models.Profile `json:"user"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type Handler struct {
	sessions  *session.Service
	accounts  *account.Service
	cookies   session.CookiePolicy
	minLength int
	logger    *logging.Service
}

func NewHandler(cfg *config.Config, sessions *session.Service, accounts *account.Service, cookies session.CookiePolicy, logger *logging.Service) *Handler {
	return &Handler{
		sessions:  sessions,
		accounts:  accounts,
		cookies:   cookies,
		minLength: cfg.Auth.MinPasswordLength,
		logger:    logger.Named("auth"),
	}
}

func (h *Handler) CSRF(c echo.Context) error {
	csrfToken, err := h.sessions.IssueCSRF()
	if err != nil {
		h.logger.Error("failed to initialize csrf cookie", zap.String("ip", c.RealIP()), zap.Error(err))
		return apperr.Wrap(apperr.Internal, "Failed to initialize CSRF protection", err)
	}

	h.cookies.SetCSRFCookie(c, csrfToken)
	return c.JSON(http.StatusOK, CSRFResponse{OK: true, CSRFToken: csrfToken})
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Wrap(apperr.Validation, "Invalid request body", err)
	}
	if err := validate.Email(req.Email); err != nil {
		return err
	}
	if err := validate.Password(req.Password, h.minLength, 0); err != nil {
		return err
	}

	issued, err := h.sessions.Login(c.Request().Context(), session.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	})
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			return apperr.Wrap(apperr.InvalidCredentials, "Invalid email or password", err)
		}
		return apperr.Wrap(apperr.Internal, "login failed", err)
	}

	h.cookies.SetSessionCookies(c, issued)
	return c.JSON(http.StatusOK, LoginResponse{
		User:        issued.Account.PublicProfile(),
		AccessToken: issued.AccessToken,
		CSRFToken:   issued.CSRFToken,
	})
}

// Refresh clears both cookies whenever the presented refresh token is not
// accepted, so the browser stops replaying it.
func (h *Handler) Refresh(c echo.Context) error {
	issued, err := h.sessions.Refresh(c.Request().Context(), h.cookies.RefreshToken(c))
	if err != nil {
		kind := refreshKind(err)
		if kind.IsRefreshFailure() {
			h.cookies.ClearSessionCookies(c)
			h.logger.Warn("refresh failed",
				zap.String("kind", kind.String()),
				zap.String("ip", c.RealIP()),
				zap.String("origin", c.Request().Header.Get(echo.HeaderOrigin)))
		}
		return apperr.Wrap(kind, "refresh failed", err)
	}

	h.cookies.SetSessionCookies(c, issued)
	return c.JSON(http.StatusOK, RefreshResponse{
		AccessToken: issued.AccessToken,
		CSRFToken:   issued.CSRFToken,
	})
}

func (h *Handler) Logout(c echo.Context) error {
	h.sessions.Logout(c.Request().Context(), h.cookies.RefreshToken(c))
	h.cookies.ClearSessionCookies(c)
	return c.JSON(http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

func (h *Handler) Me(c echo.Context) error {
	identity, ok := authmw.GetIdentity(c)
	if !ok {
		return apperr.New(apperr.Unauthenticated, "Unauthorized")
	}

	acct, err := h.accounts.FindByID(c.Request().Context(), identity.AccountID)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return apperr.Wrap(apperr.NotFound, "User not found", err)
		}
		return apperr.Wrap(apperr.Internal, "failed to load account", err)
	}

	return c.JSON(http.StatusOK, MeResponse{User: acct.PublicProfile()})
}

func refreshKind(err error) apperr.Kind {
	switch {
	case errors.Is(err, session.ErrMissingRefreshToken):
		return apperr.MissingRefreshToken
	case errors.Is(err, session.ErrInvalidRefreshToken):
		return apperr.InvalidRefreshToken
	case errors.Is(err, session.ErrRefreshRejected):
		return apperr.RefreshRejected
	default:
		return apperr.Internal
	}
}
