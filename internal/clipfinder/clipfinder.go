package clipfinder

import (
	"context"

	"github.com/clipworks/clipfarm/internal/domain"
)

// Client picks highlight windows out of a transcript.
type Client interface {
	FindClips(ctx context.Context, title string, segments []domain.TranscriptSegment) ([]domain.ClipWindow, error)
}
