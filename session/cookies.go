package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/webmitra3-cloud/webmitra.tech/config"
)

// CookiePolicy is resolved once at startup. Production serves the SPA from
// another site, so cookies there must be SameSite=None and Secure.
type CookiePolicy struct {
	RefreshName string
	CSRFName    string
	Domain      string
	Path        string
	Secure      bool
	SameSite    http.SameSite
	MaxAge      time.Duration
}

func NewCookiePolicy(cfg *config.Config) CookiePolicy {
	policy := CookiePolicy{
		RefreshName: cfg.Cookie.RefreshName,
		CSRFName:    cfg.Cookie.CSRFName,
		Domain:      cfg.Cookie.Domain,
		Path:        "/",
		Secure:      false,
		SameSite:    http.SameSiteLaxMode,
		MaxAge:      cfg.JWT.RefreshExpiry,
	}

	if cfg.IsProduction() {
		policy.Secure = true
		policy.SameSite = http.SameSiteNoneMode
	}

	switch strings.ToLower(cfg.Cookie.SameSite) {
	case "strict":
		policy.SameSite = http.SameSiteStrictMode
	case "lax":
		policy.SameSite = http.SameSiteLaxMode
	case "none":
		policy.SameSite = http.SameSiteNoneMode
		// browsers drop SameSite=None cookies that are not Secure
		policy.Secure = true
	}

	if policy.RefreshName == "" {
		policy.RefreshName = "wm_refresh"
	}
	if policy.CSRFName == "" {
		policy.CSRFName = "wm_csrf"
	}

	return policy
}

// SetSessionCookies expires both cookies with the refresh token's exp claim.
func (p CookiePolicy) SetSessionCookies(c echo.Context, issued *Issued) {
	c.SetCookie(p.cookie(p.RefreshName, issued.RefreshToken, true, issued.RefreshExpiresAt))
	c.SetCookie(p.cookie(p.CSRFName, issued.CSRFToken, false, issued.RefreshExpiresAt))
}

func (p CookiePolicy) SetCSRFCookie(c echo.Context, csrfToken string) {
	c.SetCookie(p.cookie(p.CSRFName, csrfToken, false, time.Time{}))
}

func (p CookiePolicy) ClearSessionCookies(c echo.Context) {
	c.SetCookie(p.expired(p.RefreshName, true))
	c.SetCookie(p.expired(p.CSRFName, false))
}

func (p CookiePolicy) RefreshToken(c echo.Context) string {
	return cookieValue(c, p.RefreshName)
}

func (p CookiePolicy) CSRFToken(c echo.Context) string {
	return cookieValue(c, p.CSRFName)
}

// cookie leaves Expires unset when expires is zero; Max-Age still applies.
func (p CookiePolicy) cookie(name, value string, httpOnly bool, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     p.Path,
		Domain:   p.Domain,
		MaxAge:   int(p.MaxAge.Seconds()),
		Expires:  expires,
		Secure:   p.Secure,
		HttpOnly: httpOnly,
		SameSite: p.SameSite,
	}
}

func (p CookiePolicy) expired(name string, httpOnly bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     p.Path,
		Domain:   p.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   p.Secure,
		HttpOnly: httpOnly,
		SameSite: p.SameSite,
	}
}

func cookieValue(c echo.Context, name string) string {
	cookie, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
