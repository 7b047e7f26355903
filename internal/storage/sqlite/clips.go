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

const clipColumns = `id, source_id, source_url, source_title, platform, segment_index,
	segment_start, segment_end, segment_reason, media_path, media_url, transcript_path,
	caption, state, checkpoint, retry_count, error_detail, discovered_at, updated_at, posted_at`

func (s *Store) UpsertClip(ctx context.Context, clip domain.Clip) error {
	clip.UpdatedAt = time.Now().UTC()
	if clip.DiscoveredAt.IsZero() {
		clip.DiscoveredAt = clip.UpdatedAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clips (`+clipColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_id=excluded.source_id,
			source_url=excluded.source_url,
			source_title=excluded.source_title,
			platform=excluded.platform,
			segment_index=excluded.segment_index,
			segment_start=excluded.segment_start,
			segment_end=excluded.segment_end,
			segment_reason=excluded.segment_reason,
			media_path=excluded.media_path,
			media_url=excluded.media_url,
			transcript_path=excluded.transcript_path,
			caption=excluded.caption,
			state=excluded.state,
			checkpoint=excluded.checkpoint,
			retry_count=excluded.retry_count,
			error_detail=excluded.error_detail,
			updated_at=excluded.updated_at,
			posted_at=excluded.posted_at`,
		clip.ID, clip.SourceID, clip.SourceURL, clip.SourceTitle, clip.Platform,
		nullableInt(clip.SegmentIndex), clip.SegmentStart, clip.SegmentEnd, clip.SegmentReason,
		clip.MediaPath, clip.MediaURL, clip.TranscriptPath, nullableString(clip.Caption),
		string(clip.State), string(clip.Checkpoint), clip.RetryCount,
		nullableString(clip.ErrorDetail), formatTime(clip.DiscoveredAt),
		formatTime(clip.UpdatedAt), nullableTime(clip.PostedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert clip %s: %w", clip.ID, err)
	}
	return nil
}

func (s *Store) GetClip(ctx context.Context, id string) (*domain.Clip, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+clipColumns+` FROM clips WHERE id = ?`, id)
	clip, err := scanClip(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return clip, nil
}

func (s *Store) ListClips(ctx context.Context, filter storage.ClipFilter) ([]domain.Clip, error) {
	query := `SELECT ` + clipColumns + ` FROM clips WHERE 1=1`
	var args []any
	if filter.State != "" {
		query += " AND state = ?"
		args = append(args, string(filter.State))
	}
	if filter.Platform != "" {
		query += " AND platform = ?"
		args = append(args, filter.Platform)
	}
	if filter.Order == storage.NewestFirst {
		query += " ORDER BY discovered_at DESC, id DESC"
	} else {
		query += " ORDER BY discovered_at ASC, id ASC"
	}
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list clips: %w", err)
	}
	defer rows.Close()

	var clips []domain.Clip
	for rows.Next() {
		clip, err := scanClip(rows)
		if err != nil {
			return nil, fmt.Errorf("scan clip row: %w", err)
		}
		clips = append(clips, *clip)
	}
	return clips, rows.Err()
}

func (s *Store) DeleteClip(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM clips WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete clip %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClip(row rowScanner) (*domain.Clip, error) {
	var (
		clip         domain.Clip
		segmentIdx   sql.NullInt64
		caption      sql.NullString
		errorDetail  sql.NullString
		state        string
		checkpoint   string
		discoveredAt string
		updatedAt    string
		postedAt     sql.NullString
	)
	err := row.Scan(
		&clip.ID, &clip.SourceID, &clip.SourceURL, &clip.SourceTitle, &clip.Platform,
		&segmentIdx, &clip.SegmentStart, &clip.SegmentEnd, &clip.SegmentReason,
		&clip.MediaPath, &clip.MediaURL, &clip.TranscriptPath, &caption,
		&state, &checkpoint, &clip.RetryCount, &errorDetail,
		&discoveredAt, &updatedAt, &postedAt,
	)
	if err != nil {
		return nil, err
	}

	clip.State = domain.ClipState(state)
	clip.Checkpoint = domain.ClipState(checkpoint)
	if segmentIdx.Valid {
		idx := int(segmentIdx.Int64)
		clip.SegmentIndex = &idx
	}
	if caption.Valid {
		clip.Caption = &caption.String
	}
	if errorDetail.Valid {
		clip.ErrorDetail = &errorDetail.String
	}
	clip.DiscoveredAt = parseTime(discoveredAt)
	clip.UpdatedAt = parseTime(updatedAt)
	if postedAt.Valid {
		t := parseTime(postedAt.String)
		clip.PostedAt = &t
	}
	return &clip, nil
}
