// Package store opens the repository backend selected by configuration.
package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/prn-tf/pantry/internal/config"
	"github.com/prn-tf/pantry/internal/repository"
	"github.com/prn-tf/pantry/internal/repository/postgres"
	"github.com/prn-tf/pantry/internal/repository/redis"
	"github.com/prn-tf/pantry/internal/repository/sqlite"
)

// Open connects to the configured database, applies migrations when
// database.auto_migrate is set, and swaps in the Redis token store when
// auth.token_store is "redis".
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*repository.Repositories, error) {
	var (
		repos *repository.Repositories
		err   error
	)

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		repos, err = openPostgres(ctx, cfg.Database, logger)
	case config.DriverSQLite:
		repos, err = openSQLite(ctx, cfg.Database, logger)
	default:
		return nil, fmt.Errorf("%w: %q", repository.ErrUnknownDriver, cfg.Database.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Auth.TokenStore == config.TokenStoreRedis {
		rdb, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			_ = repos.Close()
			return nil, err
		}
		repos.Tokens = redis.NewTokenRepository(rdb, cfg.Auth.RedisTokenTTL)
		repos.AddCloser(rdb)

		logger.Info().Str("addr", cfg.Redis.Addr()).Msg("using redis token store")
	}

	return repos, nil
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*repository.Repositories, error) {
	db, err := postgres.NewDB(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return &repository.Repositories{
		Users:       postgres.NewUserRepository(db),
		Tokens:      postgres.NewTokenRepository(db),
		Tags:        postgres.NewTagRepository(db),
		Ingredients: postgres.NewIngredientRepository(db),
		Recipes:     postgres.NewRecipeRepository(db),
		Database:    db,
	}, nil
}

func openSQLite(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*repository.Repositories, error) {
	db, err := sqlite.NewDB(ctx, sqlite.ConfigFromDatabase(cfg), logger)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate || cfg.Path == sqlite.MemoryPath {
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return &repository.Repositories{
		Users:       sqlite.NewUserRepository(db),
		Tokens:      sqlite.NewTokenRepository(db),
		Tags:        sqlite.NewTagRepository(db),
		Ingredients: sqlite.NewIngredientRepository(db),
		Recipes:     sqlite.NewRecipeRepository(db),
		Database:    db,
	}, nil
}
