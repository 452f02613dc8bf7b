package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/webmitra3-cloud/webmitra.tech/internal/apperr"
	"github.com/webmitra3-cloud/webmitra.tech/models"
	"github.com/webmitra3-cloud/webmitra.tech/services/token"
)

const IdentityKey = "_auth_identity"

type AccessVerifier interface {
	VerifyAccess(tokenString string) (*token.AccessClaims, error)
}

func RequireAuth(verifier AccessVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return apperr.New(apperr.Unauthenticated, "Authentication required")
			}

			scheme, tokenString, found := strings.Cut(authHeader, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") {
				return apperr.New(apperr.Unauthenticated, "Invalid authorization header format")
			}

			tokenString = strings.TrimSpace(tokenString)
			if tokenString == "" {
				return apperr.New(apperr.Unauthenticated, "Access token required")
			}

			claims, err := verifier.VerifyAccess(tokenString)
			if err != nil {
				if errors.Is(err, token.ErrExpiredToken) {
					return apperr.Wrap(apperr.Unauthenticated, "Access token expired", err)
				}
				return apperr.Wrap(apperr.Unauthenticated, "Invalid access token", err)
			}

			c.Set(IdentityKey, claims.Identity())
			return next(c)
		}
	}
}

// RequireRole must run after RequireAuth.
func RequireRole(roles ...models.Role) echo.MiddlewareFunc {
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	message := fmt.Sprintf("Forbidden. Requires role: %s.", strings.Join(names, ", "))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, ok := GetIdentity(c)
			if !ok {
				return apperr.New(apperr.Unauthenticated, "Authentication required")
			}

			for _, role := range roles {
				if identity.Role == role {
					return next(c)
				}
			}
			return apperr.New(apperr.Forbidden, message)
		}
	}
}

func GetIdentity(c echo.Context) (token.Identity, bool) {
	identity, ok := c.Get(IdentityKey).(token.Identity)
	return identity, ok
}

func GetAccountID(c echo.Context) string {
	identity, _ := GetIdentity(c)
	return identity.AccountID
}
