package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/parts-support/internal/config"
	"github.com/spec-kit/parts-support/internal/repository"
	"github.com/spec-kit/parts-support/internal/repository/gormstore"
	"github.com/spec-kit/parts-support/migrations"
)

// OpenStore builds the repository.Store selected by cfg.Storage.Driver.
// The returned func releases the underlying connections.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Store, func(), error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		db, err := OpenSQLite(cfg.Storage.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return gormstore.New(db), closeFn, nil

	case config.DriverPostgres:
		pool, err := ConnectPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Postgres.RunMigrations {
			if err := RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return repository.NewPostgresStore(pool), pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
