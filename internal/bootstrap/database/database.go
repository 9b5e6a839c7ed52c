// Package database opens the gorm handle for the configured driver.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"pharmatrace/internal/bootstrap/config"
	"pharmatrace/internal/bootstrap/logging"
	"pharmatrace/internal/errs"
)

const (
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"
)

// Open connects to cfg.Driver at cfg.DSN. Storage errors are translated so
// unique violations surface as gorm.ErrDuplicatedKey.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	driver, err := normalizeDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithAttrs(ctx,
		slog.String("component", "bootstrap.database"),
		slog.String("driver", driver),
	)

	var dialector gorm.Dialector
	switch driver {
	case driverSQLite:
		if dir := sqliteDir(cfg.DSN); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errs.Wrapf(err, "create sqlite directory %q", dir)
			}
		}
		dialector = gormsqlite.Open(cfg.DSN)
	case driverPostgres:
		dialector = postgres.Open(cfg.DSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, errs.Wrapf(err, "open %s db", driver)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errs.Wrap(err, "get sql db")
	}

	if driver == driverSQLite {
		// One writer at a time; transactions queue on the single connection.
		sqlDB.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
			sqlDB.SetMaxIdleConns(cfg.MaxOpenConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	logging.Info(ctx, "database opened", slog.Int("max_open_conns", sqlDB.Stats().MaxOpenConnections))
	return db, nil
}

func normalizeDriver(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "sqlite3":
		return driverSQLite, nil
	case "postgres", "postgresql", "pgx":
		return driverPostgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// sqliteDir returns the directory a file DSN lives in, or "" for in-memory
// databases and files in the working directory.
func sqliteDir(dsn string) string {
	path := strings.TrimSpace(dsn)
	if len(path) >= 5 && strings.EqualFold(path[:5], "file:") {
		path = path[5:]
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return ""
	}
	if dir := filepath.Dir(path); dir != "." {
		return dir
	}
	return ""
}
