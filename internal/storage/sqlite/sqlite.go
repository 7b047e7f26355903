package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/clipworks/clipfarm/internal/storage"
	"github.com/clipworks/clipfarm/pkg/config"
	"github.com/clipworks/clipfarm/pkg/logger"
)

// Store is the local fallback backend. It keeps everything in a single
// SQLite file and serves media straight from the local filesystem, so the
// dashboard's live preview is reduced but orchestration is unaffected.
type Store struct {
	db     *sql.DB
	path   string
	logger logger.Logger
}

var _ storage.Gateway = (*Store)(nil)

func Open(cfg *config.Config, log logger.Logger) (*Store, error) {
	dbPath := cfg.Sqlite.Path
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, logger: log}
	if err := store.applySchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	store.logger.Info("Opened local database", "path", dbPath)
	return store, nil
}

func (s *Store) applySchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS clips (
			id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL,
			source_url TEXT NOT NULL,
			source_title TEXT NOT NULL DEFAULT '',
			platform TEXT NOT NULL DEFAULT '',
			segment_index INTEGER,
			segment_start REAL NOT NULL DEFAULT 0,
			segment_end REAL NOT NULL DEFAULT 0,
			segment_reason TEXT NOT NULL DEFAULT '',
			media_path TEXT NOT NULL DEFAULT '',
			media_url TEXT NOT NULL DEFAULT '',
			transcript_path TEXT NOT NULL DEFAULT '',
			caption TEXT,
			state TEXT NOT NULL,
			checkpoint TEXT NOT NULL DEFAULT '',
			retry_count INTEGER NOT NULL DEFAULT 0,
			error_detail TEXT,
			discovered_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			posted_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_clips_state ON clips(state)`,
		`CREATE INDEX IF NOT EXISTS idx_clips_platform ON clips(platform)`,
		`CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			platform TEXT NOT NULL,
			name TEXT NOT NULL,
			credentials_path TEXT NOT NULL DEFAULT '',
			credentials_updated_at TEXT NOT NULL,
			daily_cap INTEGER NOT NULL DEFAULT 5,
			posts_today INTEGER NOT NULL DEFAULT 0,
			post_day TEXT NOT NULL DEFAULT '',
			weight INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS heartbeats (
			worker_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			last_seen TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS link_usage (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			url TEXT NOT NULL,
			niche TEXT NOT NULL DEFAULT 'general',
			used_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS posts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			clip_id TEXT NOT NULL,
			platform TEXT NOT NULL,
			account_id TEXT NOT NULL,
			posted_at TEXT NOT NULL,
			success INTEGER NOT NULL DEFAULT 1,
			receipt TEXT NOT NULL DEFAULT '',
			error_detail TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			level TEXT NOT NULL,
			component TEXT NOT NULL,
			message TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Name() string { return "sqlite" }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	return s.db.Close()
}

// StoreMedia is a no-op locally; the clip is already on disk where the
// poster sidecar can reach it.
func (s *Store) StoreMedia(ctx context.Context, localPath string) (string, error) {
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return localPath, nil
	}
	return abs, nil
}
