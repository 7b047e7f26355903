package migrations

import (
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigration(upInit, downInit)
}

func upInit(tx *sql.Tx) error {
	_, err := tx.Exec(`
	CREATE TABLE IF NOT EXISTS clips (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		source_url TEXT NOT NULL,
		source_title TEXT NOT NULL DEFAULT '',
		platform TEXT NOT NULL DEFAULT '',
		segment_index INTEGER,
		segment_start DOUBLE PRECISION NOT NULL DEFAULT 0,
		segment_end DOUBLE PRECISION NOT NULL DEFAULT 0,
		segment_reason TEXT NOT NULL DEFAULT '',
		media_path TEXT NOT NULL DEFAULT '',
		media_url TEXT NOT NULL DEFAULT '',
		transcript_path TEXT NOT NULL DEFAULT '',
		caption TEXT,
		state TEXT NOT NULL,
		checkpoint TEXT NOT NULL DEFAULT '',
		retry_count INTEGER NOT NULL DEFAULT 0,
		error_detail TEXT,
		discovered_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		posted_at TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS idx_clips_state ON clips(state);
	CREATE INDEX IF NOT EXISTS idx_clips_platform ON clips(platform);

	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		platform TEXT NOT NULL,
		name TEXT NOT NULL,
		credentials_path TEXT NOT NULL DEFAULT '',
		credentials_updated_at TIMESTAMPTZ NOT NULL,
		daily_cap INTEGER NOT NULL DEFAULT 5,
		posts_today INTEGER NOT NULL DEFAULT 0,
		post_day TEXT NOT NULL DEFAULT '',
		weight INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS heartbeats (
		worker_id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		last_seen TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS link_usage (
		id BIGSERIAL PRIMARY KEY,
		url TEXT NOT NULL,
		niche TEXT NOT NULL DEFAULT 'general',
		used_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS posts (
		id BIGSERIAL PRIMARY KEY,
		clip_id TEXT NOT NULL,
		platform TEXT NOT NULL,
		account_id TEXT NOT NULL,
		posted_at TIMESTAMPTZ NOT NULL,
		success BOOLEAN NOT NULL DEFAULT TRUE,
		receipt TEXT NOT NULL DEFAULT '',
		error_detail TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS logs (
		id BIGSERIAL PRIMARY KEY,
		level TEXT NOT NULL,
		component TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);

	INSERT INTO settings (key, value, updated_at) VALUES
		('auto_posting_enabled', '0', NOW()),
		('auto_posting_tiktok', '0', NOW()),
		('auto_posting_instagram', '0', NOW()),
		('auto_posting_youtube', '0', NOW())
	ON CONFLICT (key) DO NOTHING;
	`)
	return err
}

func downInit(tx *sql.Tx) error {
	_, err := tx.Exec(`
	DROP TABLE IF EXISTS logs;
	DROP TABLE IF EXISTS posts;
	DROP TABLE IF EXISTS settings;
	DROP TABLE IF EXISTS link_usage;
	DROP TABLE IF EXISTS heartbeats;
	DROP TABLE IF EXISTS accounts;
	DROP TABLE IF EXISTS clips;
	`)
	return err
}
