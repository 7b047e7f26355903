package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/clipworks/clipfarm/internal/domain"
	"github.com/clipworks/clipfarm/internal/storage"
)

func (s *Store) UpsertClip(ctx context.Context, clip domain.Clip) error {
	clip.UpdatedAt = time.Now().UTC()
	if clip.DiscoveredAt.IsZero() {
		clip.DiscoveredAt = clip.UpdatedAt
	}

	_, err := s.clips().ReplaceOne(ctx,
		bson.M{"_id": clip.ID},
		toClipDoc(clip),
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert clip %s: %w", clip.ID, err)
	}
	return nil
}

func (s *Store) GetClip(ctx context.Context, id string) (*domain.Clip, error) {
	var doc clipDoc
	err := s.clips().FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get clip %s: %w", id, err)
	}
	clip := doc.toDomain()
	return &clip, nil
}

func (s *Store) ListClips(ctx context.Context, filter storage.ClipFilter) ([]domain.Clip, error) {
	query := bson.M{}
	if filter.State != "" {
		query["state"] = string(filter.State)
	}
	if filter.Platform != "" {
		query["platform"] = filter.Platform
	}

	direction := 1
	if filter.Order == storage.NewestFirst {
		direction = -1
	}
	opts := options.Find().SetSort(bson.D{
		{Key: "discovered_at", Value: direction},
		{Key: "_id", Value: direction},
	})
	if filter.Limit > 0 {
		opts = opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := s.clips().Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("list clips: %w", err)
	}
	defer cursor.Close(ctx)

	var clips []domain.Clip
	for cursor.Next(ctx) {
		var doc clipDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode clip document: %w", err)
		}
		clips = append(clips, doc.toDomain())
	}
	return clips, cursor.Err()
}

func (s *Store) DeleteClip(ctx context.Context, id string) error {
	res, err := s.clips().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete clip %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}
