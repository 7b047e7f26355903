package transcriber

import (
	"context"

	"github.com/clipworks/clipfarm/internal/domain"
)

// Client produces a timestamped transcript for a downloaded video and
// persists it so later steps (and resumed runs) can reload it.
type Client interface {
	Transcribe(ctx context.Context, videoID, mediaPath string) (string, []domain.TranscriptSegment, error)
	Load(transcriptPath string) ([]domain.TranscriptSegment, error)
}
