package editor

import (
	"context"

	"github.com/clipworks/clipfarm/internal/domain"
)

// Client cuts a highlight window out of the source video, reframes it
// vertical and burns captions in.
type Client interface {
	Edit(ctx context.Context, clip domain.Clip, segments []domain.TranscriptSegment) (string, error)
}
