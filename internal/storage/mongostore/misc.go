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

func (s *Store) UpsertHeartbeat(ctx context.Context, hb domain.Heartbeat) error {
	_, err := s.heartbeats().ReplaceOne(ctx,
		bson.M{"_id": hb.WorkerID},
		heartbeatDoc{WorkerID: hb.WorkerID, Status: hb.Status, LastSeen: hb.LastSeen},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert heartbeat %s: %w", hb.WorkerID, err)
	}
	return nil
}

func (s *Store) GetHeartbeat(ctx context.Context, workerID string) (*domain.Heartbeat, error) {
	var doc heartbeatDoc
	err := s.heartbeats().FindOne(ctx, bson.M{"_id": workerID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get heartbeat %s: %w", workerID, err)
	}
	return &domain.Heartbeat{
		WorkerID: doc.WorkerID,
		Status:   doc.Status,
		LastSeen: doc.LastSeen.UTC(),
	}, nil
}

func (s *Store) AddLinkUsage(ctx context.Context, usage domain.LinkUsage) error {
	if usage.UsedAt.IsZero() {
		usage.UsedAt = time.Now().UTC()
	}
	_, err := s.linkUsage().InsertOne(ctx, linkUsageDoc{
		URL:    usage.URL,
		Niche:  usage.Niche,
		UsedAt: usage.UsedAt,
	})
	if err != nil {
		return fmt.Errorf("add link usage: %w", err)
	}
	return nil
}

func (s *Store) RecentLinkUsage(ctx context.Context, niche string, limit int) ([]domain.LinkUsage, error) {
	query := bson.M{}
	if niche != "" {
		query["niche"] = niche
	}
	opts := options.Find().SetSort(bson.D{{Key: "used_at", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}

	cursor, err := s.linkUsage().Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("recent link usage: %w", err)
	}
	defer cursor.Close(ctx)

	var usages []domain.LinkUsage
	for cursor.Next(ctx) {
		var doc linkUsageDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode link usage document: %w", err)
		}
		usages = append(usages, domain.LinkUsage{
			URL:    doc.URL,
			Niche:  doc.Niche,
			UsedAt: doc.UsedAt.UTC(),
		})
	}
	return usages, cursor.Err()
}

func (s *Store) PruneLinkUsage(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.linkUsage().DeleteMany(ctx, bson.M{"used_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("prune link usage: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var doc settingDoc
	err := s.settings().FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return doc.Value, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.settings().ReplaceOne(ctx,
		bson.M{"_id": key},
		settingDoc{Key: key, Value: value, UpdatedAt: time.Now().UTC()},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

func (s *Store) AddPost(ctx context.Context, post domain.Post) error {
	if post.PostedAt.IsZero() {
		post.PostedAt = time.Now().UTC()
	}
	_, err := s.posts().InsertOne(ctx, postDoc{
		ClipID:      post.ClipID,
		Platform:    post.Platform,
		AccountID:   post.AccountID,
		PostedAt:    post.PostedAt,
		Success:     post.Success,
		Receipt:     post.Receipt,
		ErrorDetail: post.ErrorDetail,
	})
	if err != nil {
		return fmt.Errorf("add post record: %w", err)
	}
	return nil
}

func (s *Store) ListPosts(ctx context.Context, limit int) ([]domain.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "posted_at", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}

	cursor, err := s.posts().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer cursor.Close(ctx)

	var posts []domain.Post
	for cursor.Next(ctx) {
		var doc postDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode post document: %w", err)
		}
		posts = append(posts, domain.Post{
			ClipID:      doc.ClipID,
			Platform:    doc.Platform,
			AccountID:   doc.AccountID,
			PostedAt:    doc.PostedAt.UTC(),
			Success:     doc.Success,
			Receipt:     doc.Receipt,
			ErrorDetail: doc.ErrorDetail,
		})
	}
	return posts, cursor.Err()
}

func (s *Store) AddLog(ctx context.Context, entry domain.LogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.logs().InsertOne(ctx, logDoc{
		Level:     string(entry.Level),
		Component: entry.Component,
		Message:   entry.Message,
		CreatedAt: entry.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("add log entry: %w", err)
	}
	return nil
}

func (s *Store) ListLogs(ctx context.Context, filter storage.LogFilter) ([]domain.LogEntry, error) {
	query := bson.M{}
	if filter.Component != "" {
		query["component"] = filter.Component
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if filter.Limit > 0 {
		opts = opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := s.logs().Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []domain.LogEntry
	for cursor.Next(ctx) {
		var doc logDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode log document: %w", err)
		}
		entries = append(entries, domain.LogEntry{
			Level:     domain.LogLevel(doc.Level),
			Component: doc.Component,
			Message:   doc.Message,
			CreatedAt: doc.CreatedAt.UTC(),
		})
	}
	return entries, cursor.Err()
}
