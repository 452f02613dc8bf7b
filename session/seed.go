package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/webmitra3-cloud/webmitra.tech/config"
	"github.com/webmitra3-cloud/webmitra.tech/models"
	"go.uber.org/zap"
)

type SeedInput struct {
	Name     string
	Email    string
	Password string
}

func SeedInputFromConfig(cfg *config.Config) SeedInput {
	return SeedInput{
		Name:     cfg.Auth.SeedName,
		Email:    cfg.Auth.SeedEmail,
		Password: cfg.Auth.SeedPassword,
	}
}

// SeedAdmin creates the admin account, or resets its name, password and role
// when it already exists.
func (s *Service) SeedAdmin(ctx context.Context, in SeedInput) (*models.Account, error) {
	email := models.NormalizeEmail(in.Email)
	if email == "" {
		return nil, fmt.Errorf("seed admin: email is required")
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = "Admin"
	}

	hash, err := s.passwords.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("seed admin: %w", err)
	}

	acct, err := s.accounts.Upsert(ctx, &models.Account{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	})
	if err != nil {
		return nil, fmt.Errorf("seed admin: %w", err)
	}

	s.logger.Info("admin account seeded", zap.String("account_id", acct.ID), zap.String("email", acct.Email))
	return acct, nil
}
