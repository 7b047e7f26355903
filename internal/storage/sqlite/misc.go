package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/clipworks/clipfarm/internal/domain"
	"github.com/clipworks/clipfarm/internal/storage"
)

func (s *Store) UpsertHeartbeat(ctx context.Context, hb domain.Heartbeat) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO heartbeats (worker_id, status, last_seen)
		VALUES (?, ?, ?)
		ON CONFLICT(worker_id) DO UPDATE SET
			status=excluded.status,
			last_seen=excluded.last_seen`,
		hb.WorkerID, hb.Status, formatTime(hb.LastSeen),
	)
	if err != nil {
		return fmt.Errorf("upsert heartbeat %s: %w", hb.WorkerID, err)
	}
	return nil
}

func (s *Store) GetHeartbeat(ctx context.Context, workerID string) (*domain.Heartbeat, error) {
	var (
		hb       domain.Heartbeat
		lastSeen string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT worker_id, status, last_seen FROM heartbeats WHERE worker_id = ?`, workerID,
	).Scan(&hb.WorkerID, &hb.Status, &lastSeen)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	hb.LastSeen = parseTime(lastSeen)
	return &hb, nil
}

func (s *Store) AddLinkUsage(ctx context.Context, usage domain.LinkUsage) error {
	if usage.UsedAt.IsZero() {
		usage.UsedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO link_usage (url, niche, used_at) VALUES (?, ?, ?)`,
		usage.URL, usage.Niche, formatTime(usage.UsedAt),
	)
	if err != nil {
		return fmt.Errorf("add link usage: %w", err)
	}
	return nil
}

func (s *Store) RecentLinkUsage(ctx context.Context, niche string, limit int) ([]domain.LinkUsage, error) {
	query := `SELECT id, url, niche, used_at FROM link_usage`
	var args []any
	if niche != "" {
		query += ` WHERE niche = ?`
		args = append(args, niche)
	}
	query += ` ORDER BY used_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("recent link usage: %w", err)
	}
	defer rows.Close()

	var usages []domain.LinkUsage
	for rows.Next() {
		var (
			usage  domain.LinkUsage
			usedAt string
		)
		if err := rows.Scan(&usage.ID, &usage.URL, &usage.Niche, &usedAt); err != nil {
			return nil, fmt.Errorf("scan link usage row: %w", err)
		}
		usage.UsedAt = parseTime(usedAt)
		usages = append(usages, usage)
	}
	return usages, rows.Err()
}

func (s *Store) PruneLinkUsage(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.db.ExecContext(ctx, `DELETE FROM link_usage WHERE used_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune link usage: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", storage.ErrNotFound
		}
		return "", err
	}
	return value, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value=excluded.value,
			updated_at=excluded.updated_at`,
		key, value, formatTime(time.Now().UTC()),
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
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (clip_id, platform, account_id, posted_at, success, receipt, error_detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		post.ClipID, post.Platform, post.AccountID, formatTime(post.PostedAt),
		boolToInt(post.Success), post.Receipt, post.ErrorDetail,
	)
	if err != nil {
		return fmt.Errorf("add post record: %w", err)
	}
	return nil
}

func (s *Store) ListPosts(ctx context.Context, limit int) ([]domain.Post, error) {
	query := `SELECT id, clip_id, platform, account_id, posted_at, success, receipt, error_detail
		FROM posts ORDER BY posted_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		var (
			post     domain.Post
			postedAt string
			success  int
		)
		if err := rows.Scan(&post.ID, &post.ClipID, &post.Platform, &post.AccountID,
			&postedAt, &success, &post.Receipt, &post.ErrorDetail); err != nil {
			return nil, fmt.Errorf("scan post row: %w", err)
		}
		post.PostedAt = parseTime(postedAt)
		post.Success = success != 0
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (s *Store) AddLog(ctx context.Context, entry domain.LogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO logs (level, component, message, created_at) VALUES (?, ?, ?, ?)`,
		string(entry.Level), entry.Component, entry.Message, formatTime(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("add log entry: %w", err)
	}
	return nil
}

func (s *Store) ListLogs(ctx context.Context, filter storage.LogFilter) ([]domain.LogEntry, error) {
	query := `SELECT id, level, component, message, created_at FROM logs`
	var args []any
	if filter.Component != "" {
		query += ` WHERE component = ?`
		args = append(args, filter.Component)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	var entries []domain.LogEntry
	for rows.Next() {
		var (
			entry     domain.LogEntry
			level     string
			createdAt string
		)
		if err := rows.Scan(&entry.ID, &level, &entry.Component, &entry.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("scan log row: %w", err)
		}
		entry.Level = domain.LogLevel(level)
		entry.CreatedAt = parseTime(createdAt)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
