package monitorimpl

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
	"go.uber.org/fx"

	"github.com/clipworks/clipfarm/internal/monitor"
	"github.com/clipworks/clipfarm/pkg/logger"
)

type Opts struct {
	fx.In

	Logger logger.Logger
}

type MonitorImpl struct {
	parser *gofeed.Parser
	logger logger.Logger
}

func New(opts Opts) *MonitorImpl {
	return &MonitorImpl{
		parser: gofeed.NewParser(),
		logger: opts.Logger,
	}
}

var _ monitor.Client = (*MonitorImpl)(nil)

const feedURL = "https://www.youtube.com/feeds/videos.xml?channel_id=%s"

// LatestVideos reads the channel's RSS feed, newest first. The feed only
// carries recent uploads, which is all discovery needs.
func (m *MonitorImpl) LatestVideos(ctx context.Context, channelID string, limit int) ([]monitor.Video, error) {
	feed, err := m.parser.ParseURLWithContext(fmt.Sprintf(feedURL, channelID), ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch feed for channel %s: %w", channelID, err)
	}

	var videos []monitor.Video
	for _, item := range feed.Items {
		if limit > 0 && len(videos) >= limit {
			break
		}
		video := monitor.Video{
			ID:    videoID(item),
			URL:   item.Link,
			Title: item.Title,
		}
		if video.ID == "" || video.URL == "" {
			m.logger.Debug("Skipping malformed feed item", "channel", channelID, "guid", item.GUID)
			continue
		}
		if item.PublishedParsed != nil {
			video.Published = item.PublishedParsed.UTC()
		}
		videos = append(videos, video)
	}

	m.logger.Info("Checked channel feed", "channel", channelID, "videos", len(videos))
	return videos, nil
}

// videoID extracts the id from the feed's "yt:video:<id>" guid, falling
// back to the v= query parameter.
func videoID(item *gofeed.Item) string {
	if id := strings.TrimPrefix(item.GUID, "yt:video:"); id != item.GUID {
		return id
	}
	if _, after, found := strings.Cut(item.Link, "v="); found {
		if idx := strings.IndexAny(after, "&#"); idx >= 0 {
			return after[:idx]
		}
		return after
	}
	return ""
}
