package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"

	minSecretLength   = 16
	minCSRFTokenBytes = 32
)

var (
	ErrWeakJWTSecret      = errors.New("JWT secrets must be at least 16 characters")
	ErrSharedJWTSecret    = errors.New("JWT access and refresh secrets must differ")
	ErrDefaultJWTSecret   = errors.New("JWT secrets must be overridden in production")
	ErrCSRFTokenTooShort  = errors.New("CSRF tokens need at least 32 random bytes")
	ErrInvalidSameSite    = errors.New("cookie SameSite must be one of strict, lax, none")
	ErrInvalidEnvironment = errors.New("APP_ENV must be one of development, test, production")
)

const (
	defaultAccessSecret  = "dev-access-secret-change-this-12345"
	defaultRefreshSecret = "dev-refresh-secret-change-this-12345"
)

type Config struct {
	App       AppConfig       `envPrefix:"APP_"`
	Server    ServerConfig    `envPrefix:"SERVER_"`
	Log       LogConfig       `envPrefix:"LOG_"`
	Database  DatabaseConfig  `envPrefix:"DATABASE_"`
	JWT       JWTConfig       `envPrefix:"JWT_"`
	Cookie    CookieConfig    `envPrefix:"COOKIE_"`
	Auth      AuthConfig      `envPrefix:"AUTH_"`
	CSRF      CSRFConfig      `envPrefix:"CSRF_"`
	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`
	Metrics   MetricsConfig   `envPrefix:"METRICS_"`
}

type AppConfig struct {
	Name          string   `env:"NAME" envDefault:"WebMitra.Tech API"`
	Version       string   `env:"VERSION" envDefault:"1.0.0"`
	Env           string   `env:"ENV" envDefault:"development"`
	ClientOrigins []string `env:"CLIENT_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
}

type ServerConfig struct {
	Host           string   `env:"HOST" envDefault:"0.0.0.0"`
	Port           string   `env:"PORT" envDefault:"5000"`
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
	BodyLimit      string   `env:"BODY_LIMIT" envDefault:"10KB"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite"`
	DSN         string `env:"DSN" envDefault:"webmitra.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

type JWTConfig struct {
	AccessSecret  string        `env:"ACCESS_SECRET" envDefault:"dev-access-secret-change-this-12345"`
	RefreshSecret string        `env:"REFRESH_SECRET" envDefault:"dev-refresh-secret-change-this-12345"`
	AccessExpiry  time.Duration `env:"ACCESS_EXPIRY" envDefault:"15m"`
	RefreshExpiry time.Duration `env:"REFRESH_EXPIRY" envDefault:"168h"`
	Issuer        string        `env:"ISSUER" envDefault:"webmitra.tech"`
}

type CookieConfig struct {
	RefreshName string `env:"REFRESH_NAME" envDefault:"wm_refresh"`
	CSRFName    string `env:"CSRF_NAME" envDefault:"wm_csrf"`
	Domain      string `env:"DOMAIN"`
	SameSite    string `env:"SAME_SITE"`
}

type AuthConfig struct {
	BcryptCost        int    `env:"BCRYPT_COST" envDefault:"12"`
	MinPasswordLength int    `env:"MIN_PASSWORD_LENGTH" envDefault:"8"`
	MaxPasswordLength int    `env:"MAX_PASSWORD_LENGTH" envDefault:"72"`
	SeedName          string `env:"SEED_NAME" envDefault:"WebMitra Admin"`
	SeedEmail         string `env:"SEED_EMAIL" envDefault:"admin@webmitra.tech"`
	SeedPassword      string `env:"SEED_PASSWORD" envDefault:"Admin@12345"`
}

type CSRFConfig struct {
	RequireOnRefresh bool   `env:"REQUIRE_ON_REFRESH" envDefault:"false"`
	HeaderName       string `env:"HEADER_NAME" envDefault:"X-CSRF-Token"`
	TokenBytes       int    `env:"TOKEN_BYTES" envDefault:"32"`
}

type RateLimitConfig struct {
	LoginRate   int           `env:"LOGIN_RATE" envDefault:"10"`
	LoginPeriod time.Duration `env:"LOGIN_PERIOD" envDefault:"15m"`
}

type MetricsConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	Path    string `env:"PATH" envDefault:"/metrics"`
}

func LoadConfig(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}

	if c, ok := cfg.(*Config); ok {
		return c.Validate()
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.App.Env {
	case EnvDevelopment, EnvTest, EnvProduction:
	default:
		return ErrInvalidEnvironment
	}

	if err := validateJWTConfig(&c.JWT, c.IsProduction()); err != nil {
		return err
	}
	if err := validateCSRFConfig(&c.CSRF); err != nil {
		return err
	}

	switch strings.ToLower(c.Cookie.SameSite) {
	case "", "strict", "lax", "none":
	default:
		return ErrInvalidSameSite
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Env == EnvProduction
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

func validateJWTConfig(cfg *JWTConfig, production bool) error {
	if len(cfg.AccessSecret) < minSecretLength || len(cfg.RefreshSecret) < minSecretLength {
		return ErrWeakJWTSecret
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return ErrSharedJWTSecret
	}
	if production && (cfg.AccessSecret == defaultAccessSecret || cfg.RefreshSecret == defaultRefreshSecret) {
		return ErrDefaultJWTSecret
	}
	if cfg.AccessExpiry <= 0 || cfg.RefreshExpiry <= 0 {
		return fmt.Errorf("JWT expiries must be positive (access %s, refresh %s)", cfg.AccessExpiry, cfg.RefreshExpiry)
	}
	return nil
}

func validateCSRFConfig(cfg *CSRFConfig) error {
	if cfg.TokenBytes < minCSRFTokenBytes {
		return ErrCSRFTokenTooShort
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = "X-CSRF-Token"
	}
	return nil
}
