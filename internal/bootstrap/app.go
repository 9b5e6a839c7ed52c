package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"pharmatrace/internal/bootstrap/config"
	"pharmatrace/internal/bootstrap/logging"
	"pharmatrace/internal/errs"
	"pharmatrace/internal/infrastructure/persistence/gormdb/model"
)

// App holds the process-wide resources every command shares. The fx
// lifecycle closes DB on stop.
type App struct {
	Config config.Config
	DB     *gorm.DB
	Logger *slog.Logger
}

// InitSchema creates or updates the hierarchy, trace event, consignment,
// catalog and cache tables.
func (a *App) InitSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if a.DB == nil {
		return errors.New("database is not open")
	}
	ctx = logging.WithAttrs(ctx,
		slog.String("component", "bootstrap.app"),
		slog.String("driver", a.Config.Database.Driver),
	)

	models := model.All()
	started := time.Now()
	logging.Info(ctx, "migrating schema", slog.Int("tables", len(models)))
	if err := a.DB.WithContext(ctx).AutoMigrate(models...); err != nil {
		return errs.Wrap(err, "auto migrate schema")
	}
	logging.Info(ctx, "schema migrated", slog.Duration("elapsed", time.Since(started)))
	return nil
}

// Ping checks that the database still answers.
func (a *App) Ping(ctx context.Context) error {
	if a.DB == nil {
		return errors.New("database is not open")
	}
	sqlDB, err := a.DB.DB()
	if err != nil {
		return errs.Wrap(err, "get sql db")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return errs.Wrap(err, "ping database")
	}
	return nil
}
