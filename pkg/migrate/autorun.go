package migrate

import (
	"context"
	"fmt"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/config"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/db"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/logger"
)

// MaybeRunDev migrates on boot in dev when AutoMigrate is on. SQLite gets the
// embedded schema instead of goose.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	if cfg.FeatureFlags.UseSQLite {
		logg.Info(ctx, "applying sqlite schema")
		return ApplySQLiteSchema(ctx, client.DB())
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	migrator, err := New(sqlDB, nil, logg)
	if err != nil {
		return err
	}
	logg.Info(ctx, "running embedded migrations")
	return migrator.Up(ctx)
}
