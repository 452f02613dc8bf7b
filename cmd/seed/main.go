// Command seed creates or resets the admin account named by AUTH_SEED_EMAIL.
package main

import (
	"context"
	"log"

	"github.com/webmitra3-cloud/webmitra.tech/config"
	"github.com/webmitra3-cloud/webmitra.tech/database"
	"github.com/webmitra3-cloud/webmitra.tech/models"
	"github.com/webmitra3-cloud/webmitra.tech/services/account"
	"github.com/webmitra3-cloud/webmitra.tech/services/auth"
	"github.com/webmitra3-cloud/webmitra.tech/services/csrf"
	"github.com/webmitra3-cloud/webmitra.tech/services/logging"
	"github.com/webmitra3-cloud/webmitra.tech/services/refreshstore"
	"github.com/webmitra3-cloud/webmitra.tech/services/token"
	"github.com/webmitra3-cloud/webmitra.tech/session"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		fx.NopLogger,
		config.NewProvider(nil),
		logging.Module,
		fx.Supply(database.WithModels(models.All()...)),
		database.Module,
		token.Module,
		auth.Module,
		account.Module,
		refreshstore.Module,
		csrf.Module,
		session.Module,
		fx.Invoke(seed),
	)
	if err := app.Err(); err != nil {
		log.Fatalf("Seed failed: %v", err)
	}
}

func seed(cfg *config.Config, sessions *session.Service, logger *logging.Service) error {
	acct, err := sessions.SeedAdmin(context.Background(), session.SeedInputFromConfig(cfg))
	if err != nil {
		return err
	}

	logger.Info("seed complete", zap.String("email", acct.Email), zap.String("role", string(acct.Role)))
	return nil
}
