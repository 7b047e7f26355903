package monitor

import (
	"context"
	"time"
)

// Video is a source video seen in a channel feed.
type Video struct {
	ID        string
	URL       string
	Title     string
	Published time.Time
}

// Client watches channels for new uploads.
type Client interface {
	LatestVideos(ctx context.Context, channelID string, limit int) ([]Video, error)
}
