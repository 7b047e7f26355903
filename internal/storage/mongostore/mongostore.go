package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/clipworks/clipfarm/internal/storage"
	"github.com/clipworks/clipfarm/internal/storage/objectstore"
	"github.com/clipworks/clipfarm/pkg/config"
	"github.com/clipworks/clipfarm/pkg/logger"
)

// Store is the hosted document backend: MongoDB for records, an
// S3-compatible bucket for media. It is first in the selection priority.
type Store struct {
	client   *mongo.Client
	db       *mongo.Database
	uploader *objectstore.Uploader
	logger   logger.Logger
}

var _ storage.Gateway = (*Store)(nil)

// Configured reports whether the Mongo connection settings are present.
func Configured(cfg *config.Config) bool {
	return cfg.Mongo.URI != ""
}

func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	var uploader *objectstore.Uploader
	if objectstore.Configured(cfg) {
		uploader, err = objectstore.New(cfg, log)
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
	}

	return &Store{
		client:   client,
		db:       client.Database(cfg.Mongo.Database),
		uploader: uploader,
		logger:   log,
	}, nil
}

func (s *Store) clips() *mongo.Collection      { return s.db.Collection("clips") }
func (s *Store) accounts() *mongo.Collection   { return s.db.Collection("accounts") }
func (s *Store) heartbeats() *mongo.Collection { return s.db.Collection("heartbeats") }
func (s *Store) linkUsage() *mongo.Collection  { return s.db.Collection("link_usage") }
func (s *Store) settings() *mongo.Collection   { return s.db.Collection("settings") }
func (s *Store) posts() *mongo.Collection      { return s.db.Collection("posts") }
func (s *Store) logs() *mongo.Collection       { return s.db.Collection("logs") }

func (s *Store) Name() string { return "mongo" }

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) StoreMedia(ctx context.Context, localPath string) (string, error) {
	if s.uploader == nil {
		s.logger.Debug("No object store configured, keeping media local", "path", localPath)
		return localPath, nil
	}
	return s.uploader.Upload(ctx, localPath)
}
