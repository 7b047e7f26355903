package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/clipworks/clipfarm/internal/domain"
	"github.com/clipworks/clipfarm/internal/storage"
)

func (s *Store) UpsertAccount(ctx context.Context, account domain.Account) error {
	// Counters are owned by TryIncrementPostCount; a re-registered account
	// keeps its posts_today and post_day.
	update := bson.M{
		"$set": bson.M{
			"platform":               account.Platform,
			"name":                   account.Name,
			"credentials_path":       account.CredentialsPath,
			"credentials_updated_at": account.CredentialsUpdatedAt,
			"daily_cap":              account.DailyCap,
			"weight":                 account.Weight,
		},
		"$setOnInsert": bson.M{
			"posts_today": account.PostsToday,
			"post_day":    account.PostDay,
		},
	}

	_, err := s.accounts().UpdateOne(ctx,
		bson.M{"_id": account.ID},
		update,
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert account %s: %w", account.ID, err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	var doc accountDoc
	err := s.accounts().FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}
	account := doc.toDomain()
	return &account, nil
}

func (s *Store) ListAccounts(ctx context.Context, platform string) ([]domain.Account, error) {
	query := bson.M{}
	if platform != "" {
		query["platform"] = platform
	}

	cursor, err := s.accounts().Find(ctx, query,
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer cursor.Close(ctx)

	var accounts []domain.Account
	for cursor.Next(ctx) {
		var doc accountDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode account document: %w", err)
		}
		accounts = append(accounts, doc.toDomain())
	}
	return accounts, cursor.Err()
}

// TryIncrementPostCount uses a single pipeline update so the day rollover,
// the cap check and the increment happen atomically on the server. The
// rollover arm only applies with a positive cap, so a zero-cap account
// never posts; with cap <= 0 the remaining posts_today < cap arm can
// never match.
func (s *Store) TryIncrementPostCount(ctx context.Context, accountID, day string, cap int) (bool, error) {
	eligible := bson.A{
		bson.M{"post_day": day, "posts_today": bson.M{"$lt": cap}},
	}
	if cap > 0 {
		eligible = append(eligible, bson.M{"post_day": bson.M{"$ne": day}})
	}
	filter := bson.M{
		"_id": accountID,
		"$or": eligible,
	}
	update := mongo.Pipeline{
		bson.D{{Key: "$set", Value: bson.M{
			"posts_today": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$post_day", day}},
				bson.M{"$add": bson.A{"$posts_today", 1}},
				1,
			}},
			"post_day": day,
		}}},
	}

	res, err := s.accounts().UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("increment post count for %s: %w", accountID, err)
	}
	if res.MatchedCount == 0 {
		if _, getErr := s.GetAccount(ctx, accountID); getErr != nil {
			return false, getErr
		}
		return false, nil
	}
	return true, nil
}
