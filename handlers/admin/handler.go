package admin

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/webmitra3-cloud/webmitra.tech/config"
	"github.com/webmitra3-cloud/webmitra.tech/internal/apperr"
	"github.com/webmitra3-cloud/webmitra.tech/internal/validate"
	authmw "github.com/webmitra3-cloud/webmitra.tech/middleware/auth"
	"github.com/webmitra3-cloud/webmitra.tech/models"
	"github.com/webmitra3-cloud/webmitra.tech/services/account"
	"github.com/webmitra3-cloud/webmitra.tech/services/audit"
	"github.com/webmitra3-cloud/webmitra.tech/services/auth"
	"github.com/webmitra3-cloud/webmitra.tech/services/logging"
	"github.com/webmitra3-cloud/webmitra.tech/session"
	"go.uber.org/zap"
)

const recentFailedLogins = 5

type DashboardTotals struct {
	Users        int64 `json:"users"`
	Admins       int64 `json:"admins"`
	Editors      int64 `json:"editors"`
	FailedLogins int64 `json:"failedLogins24h"`
}

type DashboardResponse struct {
	Totals             DashboardTotals        `json:"totals"`
	LatestFailedLogins []models.FailedAttempt `json:"latestFailedLogins"`
}

type UserListResponse struct {
	Items []models.Profile `json:"items"`
	Total int              `json:"total"`
}

type CreateUserRequest struct {
	Name     string      `json:"name" example:"Content Editor"`
	Email    string      `json:"email" example:"editor@webmitra.tech"`
	Password string      `json:"password" example:"Editor@12345"`
	Role     models.Role `json:"role" example:"EDITOR"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type Handler struct {
	accounts  *account.Service
	passwords *auth.Service
	sessions  *session.Service
	audit     *audit.Service
	minLength int
	maxLength int
	logger    *logging.Service
}

func NewHandler(cfg *config.Config, accounts *account.Service, passwords *auth.Service, sessions *session.Service, auditService *audit.Service, logger *logging.Service) *Handler {
	return &Handler{
		accounts:  accounts,
		passwords: passwords,
		sessions:  sessions,
		audit:     auditService,
		minLength: cfg.Auth.MinPasswordLength,
		maxLength: cfg.Auth.MaxPasswordLength,
		logger:    logger.Named("admin"),
	}
}

func (h *Handler) Dashboard(c echo.Context) error {
	ctx := c.Request().Context()

	var (
		totals DashboardTotals
		err    error
	)
	if totals.Users, err = h.accounts.Count(ctx, ""); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to load dashboard", err)
	}
	if totals.Admins, err = h.accounts.Count(ctx, models.RoleAdmin); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to load dashboard", err)
	}
	if totals.Editors, err = h.accounts.Count(ctx, models.RoleEditor); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to load dashboard", err)
	}
	if totals.FailedLogins, err = h.audit.CountSince(ctx, models.AttemptLogin, time.Now().Add(-24*time.Hour)); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to load dashboard", err)
	}

	latest, err := h.audit.Recent(ctx, models.AttemptLogin, recentFailedLogins)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to load dashboard", err)
	}

	return c.JSON(http.StatusOK, DashboardResponse{Totals: totals, LatestFailedLogins: latest})
}

func (h *Handler) ListUsers(c echo.Context) error {
	accounts, err := h.accounts.List(c.Request().Context())
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to list users", err)
	}

	items := make([]models.Profile, 0, len(accounts))
	for i := range accounts {
		items = append(items, accounts[i].PublicProfile())
	}
	return c.JSON(http.StatusOK, UserListResponse{Items: items, Total: len(items)})
}

func (h *Handler) CreateUser(c echo.Context) error {
	var req CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Wrap(apperr.Validation, "Invalid request body", err)
	}
	if err := validate.Name(req.Name); err != nil {
		return err
	}
	if err := validate.Email(req.Email); err != nil {
		return err
	}
	if err := validate.Password(req.Password, h.minLength, h.maxLength); err != nil {
		return err
	}
	if !req.Role.Valid() {
		return apperr.New(apperr.Validation, "Role must be ADMIN or EDITOR")
	}

	hash, err := h.passwords.HashPassword(req.Password)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to hash password", err)
	}

	acct := &models.Account{
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
	}
	if err := h.accounts.Create(c.Request().Context(), acct); err != nil {
		if errors.Is(err, account.ErrEmailTaken) {
			return apperr.Wrap(apperr.Conflict, "Email already in use", err)
		}
		return apperr.Wrap(apperr.Internal, "failed to create user", err)
	}

	h.logger.Info("user created",
		zap.String("account_id", acct.ID),
		zap.String("by", authmw.GetAccountID(c)))
	return c.JSON(http.StatusCreated, acct.PublicProfile())
}

func (h *Handler) DeleteUser(c echo.Context) error {
	id := c.Param("id")
	if id == authmw.GetAccountID(c) {
		return apperr.New(apperr.Validation, "You cannot delete your own account")
	}

	if err := h.accounts.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return apperr.Wrap(apperr.NotFound, "User not found", err)
		}
		return apperr.Wrap(apperr.Internal, "failed to delete user", err)
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: "User deleted"})
}

// RevokeUser forces the account to log in again once its access token lapses.
func (h *Handler) RevokeUser(c echo.Context) error {
	id := c.Param("id")
	if err := h.sessions.Revoke(c.Request().Context(), id); err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return apperr.Wrap(apperr.NotFound, "User not found", err)
		}
		return apperr.Wrap(apperr.Internal, "failed to revoke sessions", err)
	}

	h.logger.Info("sessions revoked", zap.String("account_id", id), zap.String("by", authmw.GetAccountID(c)))
	return c.JSON(http.StatusOK, MessageResponse{Message: "Sessions revoked"})
}
