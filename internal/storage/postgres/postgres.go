package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clipworks/clipfarm/internal/storage"
	"github.com/clipworks/clipfarm/internal/storage/objectstore"
	"github.com/clipworks/clipfarm/pkg/config"
	"github.com/clipworks/clipfarm/pkg/logger"
)

var builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Store is the hosted relational backend: Postgres for records, an
// S3-compatible bucket for media.
type Store struct {
	pool     *pgxpool.Pool
	uploader *objectstore.Uploader
	logger   logger.Logger
}

var _ storage.Gateway = (*Store)(nil)

// Configured reports whether the Postgres connection settings are present.
func Configured(cfg *config.Config) bool {
	return cfg.Postgres.Host != "" && cfg.Postgres.Name != ""
}

func ConnString(cfg *config.Config) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.User,
		cfg.Postgres.Pass,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.Name,
		cfg.Postgres.SslMode,
	)
}

func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	var uploader *objectstore.Uploader
	if objectstore.Configured(cfg) {
		uploader, err = objectstore.New(cfg, log)
		if err != nil {
			pool.Close()
			return nil, err
		}
	}

	return &Store{pool: pool, uploader: uploader, logger: log}, nil
}

func (s *Store) Name() string { return "postgres" }

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}

func (s *Store) StoreMedia(ctx context.Context, localPath string) (string, error) {
	if s.uploader == nil {
		// No bucket configured; the dashboard loses live preview but
		// orchestration carries on with the local path.
		s.logger.Debug("No object store configured, keeping media local", "path", localPath)
		return localPath, nil
	}
	return s.uploader.Upload(ctx, localPath)
}
