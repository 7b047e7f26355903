package mongostore

import (
	"time"

	"github.com/clipworks/clipfarm/internal/domain"
)

type clipDoc struct {
	ID             string     `bson:"_id"`
	SourceID       string     `bson:"source_id"`
	SourceURL      string     `bson:"source_url"`
	SourceTitle    string     `bson:"source_title"`
	Platform       string     `bson:"platform"`
	SegmentIndex   *int       `bson:"segment_index,omitempty"`
	SegmentStart   float64    `bson:"segment_start"`
	SegmentEnd     float64    `bson:"segment_end"`
	SegmentReason  string     `bson:"segment_reason"`
	MediaPath      string     `bson:"media_path"`
	MediaURL       string     `bson:"media_url"`
	TranscriptPath string     `bson:"transcript_path"`
	Caption        *string    `bson:"caption,omitempty"`
	State          string     `bson:"state"`
	Checkpoint     string     `bson:"checkpoint"`
	RetryCount     int        `bson:"retry_count"`
	ErrorDetail    *string    `bson:"error_detail,omitempty"`
	DiscoveredAt   time.Time  `bson:"discovered_at"`
	UpdatedAt      time.Time  `bson:"updated_at"`
	PostedAt       *time.Time `bson:"posted_at,omitempty"`
}

func toClipDoc(clip domain.Clip) clipDoc {
	return clipDoc{
		ID:             clip.ID,
		SourceID:       clip.SourceID,
		SourceURL:      clip.SourceURL,
		SourceTitle:    clip.SourceTitle,
		Platform:       clip.Platform,
		SegmentIndex:   clip.SegmentIndex,
		SegmentStart:   clip.SegmentStart,
		SegmentEnd:     clip.SegmentEnd,
		SegmentReason:  clip.SegmentReason,
		MediaPath:      clip.MediaPath,
		MediaURL:       clip.MediaURL,
		TranscriptPath: clip.TranscriptPath,
		Caption:        clip.Caption,
		State:          string(clip.State),
		Checkpoint:     string(clip.Checkpoint),
		RetryCount:     clip.RetryCount,
		ErrorDetail:    clip.ErrorDetail,
		DiscoveredAt:   clip.DiscoveredAt,
		UpdatedAt:      clip.UpdatedAt,
		PostedAt:       clip.PostedAt,
	}
}

func (d clipDoc) toDomain() domain.Clip {
	return domain.Clip{
		ID:             d.ID,
		SourceID:       d.SourceID,
		SourceURL:      d.SourceURL,
		SourceTitle:    d.SourceTitle,
		Platform:       d.Platform,
		SegmentIndex:   d.SegmentIndex,
		SegmentStart:   d.SegmentStart,
		SegmentEnd:     d.SegmentEnd,
		SegmentReason:  d.SegmentReason,
		MediaPath:      d.MediaPath,
		MediaURL:       d.MediaURL,
		TranscriptPath: d.TranscriptPath,
		Caption:        d.Caption,
		State:          domain.ClipState(d.State),
		Checkpoint:     domain.ClipState(d.Checkpoint),
		RetryCount:     d.RetryCount,
		ErrorDetail:    d.ErrorDetail,
		DiscoveredAt:   d.DiscoveredAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
		PostedAt:       d.PostedAt,
	}
}

type accountDoc struct {
	ID                   string    `bson:"_id"`
	Platform             string    `bson:"platform"`
	Name                 string    `bson:"name"`
	CredentialsPath      string    `bson:"credentials_path"`
	CredentialsUpdatedAt time.Time `bson:"credentials_updated_at"`
	DailyCap             int       `bson:"daily_cap"`
	PostsToday           int       `bson:"posts_today"`
	PostDay              string    `bson:"post_day"`
	Weight               int       `bson:"weight"`
}

func (d accountDoc) toDomain() domain.Account {
	return domain.Account{
		ID:                   d.ID,
		Platform:             d.Platform,
		Name:                 d.Name,
		CredentialsPath:      d.CredentialsPath,
		CredentialsUpdatedAt: d.CredentialsUpdatedAt.UTC(),
		DailyCap:             d.DailyCap,
		PostsToday:           d.PostsToday,
		PostDay:              d.PostDay,
		Weight:               d.Weight,
	}
}

type heartbeatDoc struct {
	WorkerID string    `bson:"_id"`
	Status   string    `bson:"status"`
	LastSeen time.Time `bson:"last_seen"`
}

type linkUsageDoc struct {
	URL    string    `bson:"url"`
	Niche  string    `bson:"niche"`
	UsedAt time.Time `bson:"used_at"`
}

type settingDoc struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type postDoc struct {
	ClipID      string    `bson:"clip_id"`
	Platform    string    `bson:"platform"`
	AccountID   string    `bson:"account_id"`
	PostedAt    time.Time `bson:"posted_at"`
	Success     bool      `bson:"success"`
	Receipt     string    `bson:"receipt"`
	ErrorDetail string    `bson:"error_detail"`
}

type logDoc struct {
	Level     string    `bson:"level"`
	Component string    `bson:"component"`
	Message   string    `bson:"message"`
	CreatedAt time.Time `bson:"created_at"`
}
