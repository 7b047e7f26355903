package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/clipworks/clipfarm/internal/domain"
	"github.com/clipworks/clipfarm/internal/storage"
)

func (s *Store) UpsertHeartbeat(ctx context.Context, hb domain.Heartbeat) error {
	query, args, err := builder.
		Insert("heartbeats").
		Columns("worker_id", "status", "last_seen").
		Values(hb.WorkerID, hb.Status, hb.LastSeen).
		Suffix(`ON CONFLICT (worker_id) DO UPDATE SET
			status=EXCLUDED.status,
			last_seen=EXCLUDED.last_seen`).
		ToSql()
	if err != nil {
		return storage.ErrBadQuery
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert heartbeat %s: %w", hb.WorkerID, err)
	}
	return nil
}

func (s *Store) GetHeartbeat(ctx context.Context, workerID string) (*domain.Heartbeat, error) {
	query, args, err := builder.
		Select("worker_id", "status", "last_seen").
		From("heartbeats").
		Where(sq.Eq{"worker_id": workerID}).
		ToSql()
	if err != nil {
		return nil, storage.ErrBadQuery
	}

	var hb domain.Heartbeat
	err = s.pool.QueryRow(ctx, query, args...).Scan(&hb.WorkerID, &hb.Status, &hb.LastSeen)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &hb, nil
}

func (s *Store) AddLinkUsage(ctx context.Context, usage domain.LinkUsage) error {
	if usage.UsedAt.IsZero() {
		usage.UsedAt = time.Now().UTC()
	}
	query, args, err := builder.
		Insert("link_usage").
		Columns("url", "niche", "used_at").
		Values(usage.URL, usage.Niche, usage.UsedAt).
		ToSql()
	if err != nil {
		return storage.ErrBadQuery
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("add link usage: %w", err)
	}
	return nil
}

func (s *Store) RecentLinkUsage(ctx context.Context, niche string, limit int) ([]domain.LinkUsage, error) {
	q := builder.
		Select("id", "url", "niche", "used_at").
		From("link_usage").
		OrderBy("used_at DESC", "id DESC")
	if niche != "" {
		q = q.Where(sq.Eq{"niche": niche})
	}
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, storage.ErrBadQuery
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("recent link usage: %w", err)
	}
	defer rows.Close()

	var usages []domain.LinkUsage
	for rows.Next() {
		var usage domain.LinkUsage
		if err := rows.Scan(&usage.ID, &usage.URL, &usage.Niche, &usage.UsedAt); err != nil {
			return nil, fmt.Errorf("scan link usage row: %w", err)
		}
		usages = append(usages, usage)
	}
	return usages, rows.Err()
}

func (s *Store) PruneLinkUsage(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	tag, err := s.pool.Exec(ctx, `DELETE FROM link_usage WHERE used_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune link usage: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	query, args, err := builder.
		Select("value").
		From("settings").
		Where(sq.Eq{"key": key}).
		ToSql()
	if err != nil {
		return "", storage.ErrBadQuery
	}

	var value string
	err = s.pool.QueryRow(ctx, query, args...).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", storage.ErrNotFound
		}
		return "", err
	}
	return value, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	query, args, err := builder.
		Insert("settings").
		Columns("key", "value", "updated_at").
		Values(key, value, time.Now().UTC()).
		Suffix(`ON CONFLICT (key) DO UPDATE SET
			value=EXCLUDED.value,
			updated_at=EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return storage.ErrBadQuery
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

func (s *Store) AddPost(ctx context.Context, post domain.Post) error {
	if post.PostedAt.IsZero() {
		post.PostedAt = time.Now().UTC()
	}
	query, args, err := builder.
		Insert("posts").
		Columns("clip_id", "platform", "account_id", "posted_at", "success", "receipt", "error_detail").
		Values(post.ClipID, post.Platform, post.AccountID, post.PostedAt, post.Success, post.Receipt, post.ErrorDetail).
		ToSql()
	if err != nil {
		return storage.ErrBadQuery
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("add post record: %w", err)
	}
	return nil
}

func (s *Store) ListPosts(ctx context.Context, limit int) ([]domain.Post, error) {
	q := builder.
		Select("id", "clip_id", "platform", "account_id", "posted_at", "success", "receipt", "error_detail").
		From("posts").
		OrderBy("posted_at DESC", "id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, storage.ErrBadQuery
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		var post domain.Post
		if err := rows.Scan(&post.ID, &post.ClipID, &post.Platform, &post.AccountID,
			&post.PostedAt, &post.Success, &post.Receipt, &post.ErrorDetail); err != nil {
			return nil, fmt.Errorf("scan post row: %w", err)
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (s *Store) AddLog(ctx context.Context, entry domain.LogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	query, args, err := builder.
		Insert("logs").
		Columns("level", "component", "message", "created_at").
		Values(string(entry.Level), entry.Component, entry.Message, entry.CreatedAt).
		ToSql()
	if err != nil {
		return storage.ErrBadQuery
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("add log entry: %w", err)
	}
	return nil
}

func (s *Store) ListLogs(ctx context.Context, filter storage.LogFilter) ([]domain.LogEntry, error) {
	q := builder.
		Select("id", "level", "component", "message", "created_at").
		From("logs").
		OrderBy("created_at DESC", "id DESC")
	if filter.Component != "" {
		q = q.Where(sq.Eq{"component": filter.Component})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, storage.ErrBadQuery
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	var entries []domain.LogEntry
	for rows.Next() {
		var entry domain.LogEntry
		var level string
		if err := rows.Scan(&entry.ID, &level, &entry.Component, &entry.Message, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan log row: %w", err)
		}
		entry.Level = domain.LogLevel(level)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
