package factory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	_ "github.com/clipworks/clipfarm/internal/migrations"
	"github.com/clipworks/clipfarm/internal/storage"
	"github.com/clipworks/clipfarm/internal/storage/mongostore"
	"github.com/clipworks/clipfarm/internal/storage/postgres"
	"github.com/clipworks/clipfarm/internal/storage/sqlite"
	"github.com/clipworks/clipfarm/pkg/config"
	apperrors "github.com/clipworks/clipfarm/pkg/errors"
	"github.com/clipworks/clipfarm/pkg/logger"
)

// New selects the storage backend once at startup, in fixed priority:
// mongo, then postgres, then the sqlite fallback. A configured backend
// that fails its ping is skipped with a warning; there is no mid-session
// failover, so a backend lost after startup surfaces as operation errors.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (storage.Gateway, error) {
	if mongostore.Configured(cfg) {
		store, err := probeMongo(ctx, cfg, log)
		if err == nil {
			log.Info("Storage backend selected", "backend", store.Name())
			return seeded(ctx, store)
		}
		log.Warn("Mongo backend unavailable, trying next", "error", err)
	}

	if postgres.Configured(cfg) {
		store, err := probePostgres(ctx, cfg, log)
		if err == nil {
			log.Info("Storage backend selected", "backend", store.Name())
			return store, nil
		}
		log.Warn("Postgres backend unavailable, trying next", "error", err)
	}

	store, err := sqlite.Open(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrBackendUnavailable, err)
	}
	log.Info("Storage backend selected", "backend", store.Name())
	return seeded(ctx, store)
}

func probeMongo(ctx context.Context, cfg *config.Config, log logger.Logger) (storage.Gateway, error) {
	store, err := mongostore.New(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if err := store.Ping(ctx); err != nil {
		_ = store.Close(ctx)
		return nil, err
	}
	return store, nil
}

func probePostgres(ctx context.Context, cfg *config.Config, log logger.Logger) (storage.Gateway, error) {
	store, err := postgres.New(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if err := store.Ping(ctx); err != nil {
		_ = store.Close(ctx)
		return nil, err
	}
	if err := migrate(cfg); err != nil {
		_ = store.Close(ctx)
		return nil, err
	}
	return store, nil
}

// migrate runs the registered goose migrations against Postgres. The
// migrations seed the default auto-posting settings, all off.
func migrate(cfg *config.Config) error {
	db, err := sql.Open("postgres", postgres.ConnString(cfg))
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// seeded writes the default auto-posting switches for backends without a
// migration step. Existing values are left alone; a missing switch reads
// as disabled either way.
func seeded(ctx context.Context, store storage.Gateway) (storage.Gateway, error) {
	defaults := []string{
		"auto_posting_enabled",
		"auto_posting_tiktok",
		"auto_posting_instagram",
		"auto_posting_youtube",
	}
	for _, key := range defaults {
		if _, err := store.GetSetting(ctx, key); err == nil {
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		if err := store.SetSetting(ctx, key, "0"); err != nil {
			return nil, err
		}
	}
	return store, nil
}
