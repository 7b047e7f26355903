package downloader

import (
	"context"
)

// Client fetches a source video and returns the local media path.
type Client interface {
	Download(ctx context.Context, videoID, sourceURL string) (string, error)
}
