package testutils

import (
	"time"

	"github.com/webmitra3-cloud/webmitra.tech/config"
	"golang.org/x/crypto/bcrypt"
)

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:          "WebMitra Test API",
			Version:       "test",
			Env:           config.EnvTest,
			ClientOrigins: []string{"http://localhost:5173"},
		},
		Server: config.ServerConfig{
			Host:      "127.0.0.1",
			Port:      "0",
			BodyLimit: "10KB",
		},
		Log: config.LogConfig{
			Level:  "error",
			Format: "json",
			Output: "stdout",
		},
		Database: config.DatabaseConfig{
			Driver:      "sqlite",
			DSN:         ":memory:",
			AutoMigrate: true,
		},
		JWT: config.JWTConfig{
			AccessSecret:  "test-access-secret-0123456789",
			RefreshSecret: "test-refresh-secret-0123456789",
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: 7 * 24 * time.Hour,
			Issuer:        "webmitra.test",
		},
		Cookie: config.CookieConfig{
			RefreshName: "wm_refresh",
			CSRFName:    "wm_csrf",
		},
		Auth: config.AuthConfig{
			BcryptCost:        bcrypt.MinCost,
			MinPasswordLength: 8,
			MaxPasswordLength: 72,
			SeedName:          "WebMitra Admin",
			SeedEmail:         "admin@webmitra.tech",
			SeedPassword:      "Admin@12345",
		},
		CSRF: config.CSRFConfig{
			HeaderName: "X-CSRF-Token",
			TokenBytes: 32,
		},
		RateLimit: config.RateLimitConfig{
			LoginRate:   10,
			LoginPeriod: 15 * time.Minute,
		},
		Metrics: config.MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

var TestPasswords = struct {
	Valid    string
	TooShort string
	Seed     string
}{
	Valid:    "Password123",
	TooShort: "Pass1",
	Seed:     "Admin@12345",
}

var TestAccounts = struct {
	Admin  AccountFixture
	Editor AccountFixture
}{
	Admin: AccountFixture{
		Name:     "WebMitra Admin",
		Email:    "admin@webmitra.tech",
		Password: "Admin@12345",
		Role:     "ADMIN",
	},
	Editor: AccountFixture{
		Name:     "Content Editor",
		Email:    "editor@webmitra.tech",
		Password: "Editor@12345",
		Role:     "EDITOR",
	},
}

type AccountFixture struct {
	Name     string
	Email    string
	Password string
	Role     string
}
