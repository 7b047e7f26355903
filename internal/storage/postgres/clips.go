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

var clipColumns = []string{
	"id", "source_id", "source_url", "source_title", "platform", "segment_index",
	"segment_start", "segment_end", "segment_reason", "media_path", "media_url",
	"transcript_path", "caption", "state", "checkpoint", "retry_count",
	"error_detail", "discovered_at", "updated_at", "posted_at",
}

func (s *Store) UpsertClip(ctx context.Context, clip domain.Clip) error {
	clip.UpdatedAt = time.Now().UTC()
	if clip.DiscoveredAt.IsZero() {
		clip.DiscoveredAt = clip.UpdatedAt
	}

	query, args, err := builder.
		Insert("clips").
		Columns(clipColumns...).
		Values(
			clip.ID, clip.SourceID, clip.SourceURL, clip.SourceTitle, clip.Platform,
			clip.SegmentIndex, clip.SegmentStart, clip.SegmentEnd, clip.SegmentReason,
			clip.MediaPath, clip.MediaURL, clip.TranscriptPath, clip.Caption,
			string(clip.State), string(clip.Checkpoint), clip.RetryCount,
			clip.ErrorDetail, clip.DiscoveredAt, clip.UpdatedAt, clip.PostedAt,
		).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			source_id=EXCLUDED.source_id,
			source_url=EXCLUDED.source_url,
			source_title=EXCLUDED.source_title,
			platform=EXCLUDED.platform,
			segment_index=EXCLUDED.segment_index,
			segment_start=EXCLUDED.segment_start,
			segment_end=EXCLUDED.segment_end,
			segment_reason=EXCLUDED.segment_reason,
			media_path=EXCLUDED.media_path,
			media_url=EXCLUDED.media_url,
			transcript_path=EXCLUDED.transcript_path,
			caption=EXCLUDED.caption,
			state=EXCLUDED.state,
			checkpoint=EXCLUDED.checkpoint,
			retry_count=EXCLUDED.retry_count,
			error_detail=EXCLUDED.error_detail,
			updated_at=EXCLUDED.updated_at,
			posted_at=EXCLUDED.posted_at`).
		ToSql()
	if err != nil {
		return storage.ErrBadQuery
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert clip %s: %w", clip.ID, err)
	}
	return nil
}

func (s *Store) GetClip(ctx context.Context, id string) (*domain.Clip, error) {
	query, args, err := builder.
		Select(clipColumns...).
		From("clips").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, storage.ErrBadQuery
	}

	clip, err := scanClip(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return clip, nil
}

func (s *Store) ListClips(ctx context.Context, filter storage.ClipFilter) ([]domain.Clip, error) {
	q := builder.Select(clipColumns...).From("clips")
	if filter.State != "" {
		q = q.Where(sq.Eq{"state": string(filter.State)})
	}
	if filter.Platform != "" {
		q = q.Where(sq.Eq{"platform": filter.Platform})
	}
	if filter.Order == storage.NewestFirst {
		q = q.OrderBy("discovered_at DESC", "id DESC")
	} else {
		q = q.OrderBy("discovered_at ASC", "id ASC")
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
	query, args, err := builder.Delete("clips").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return storage.ErrBadQuery
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete clip %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanClip(row pgx.Row) (*domain.Clip, error) {
	var clip domain.Clip
	var state, checkpoint string
	err := row.Scan(
		&clip.ID, &clip.SourceID, &clip.SourceURL, &clip.SourceTitle, &clip.Platform,
		&clip.SegmentIndex, &clip.SegmentStart, &clip.SegmentEnd, &clip.SegmentReason,
		&clip.MediaPath, &clip.MediaURL, &clip.TranscriptPath, &clip.Caption,
		&state, &checkpoint, &clip.RetryCount, &clip.ErrorDetail,
		&clip.DiscoveredAt, &clip.UpdatedAt, &clip.PostedAt,
	)
	if err != nil {
		return nil, err
	}
	clip.State = domain.ClipState(state)
	clip.Checkpoint = domain.ClipState(checkpoint)
	return &clip, nil
}
