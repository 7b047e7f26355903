package captioner

import (
	"context"

	"github.com/clipworks/clipfarm/internal/domain"
)

// Client writes the social caption for an edited clip. The promo link is
// already chosen by the rotator and must appear in the result.
type Client interface {
	Caption(ctx context.Context, clip domain.Clip, segments []domain.TranscriptSegment, link string) (string, error)
}
