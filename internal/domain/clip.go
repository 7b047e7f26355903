package domain

import (
	"fmt"
	"time"
)

// ClipState is the lifecycle state of a clip.
type ClipState string

const (
	StateDiscovered      ClipState = "discovered"
	StateDownloaded      ClipState = "downloaded"
	StateTranscribed     ClipState = "transcribed"
	StateClipsIdentified ClipState = "clips_identified"
	StateEdited          ClipState = "edited"
	StateCaptioned       ClipState = "captioned"
	StateQueued          ClipState = "queued"
	StateFailed          ClipState = "failed"
	StatePosted          ClipState = "posted"
	StatePostFailed      ClipState = "post_failed"
)

// PipelineStates lists every state the pipeline engine owns, in order.
var PipelineStates = []ClipState{
	StateDiscovered,
	StateDownloaded,
	StateTranscribed,
	StateClipsIdentified,
	StateEdited,
	StateCaptioned,
	StateQueued,
}

// Clip is one discovered source video or one derived segment of it. Source
// items carry a nil SegmentIndex; derived items get an id of the form
// "<videoID>:<segmentIndex>", so rediscovery upserts instead of duplicating.
type Clip struct {
	ID             string
	SourceID       string
	SourceURL      string
	SourceTitle    string
	Platform       string
	SegmentIndex   *int
	SegmentStart   float64
	SegmentEnd     float64
	SegmentReason  string
	MediaPath      string
	MediaURL       string
	TranscriptPath string
	Caption        *string
	State          ClipState
	// Checkpoint is the last state whose step completed and was persisted.
	// Retries resume from here, never repeating finished steps.
	Checkpoint   ClipState
	RetryCount   int
	ErrorDetail  *string
	DiscoveredAt time.Time
	UpdatedAt    time.Time
	PostedAt     *time.Time
}

// SegmentClipID derives the stable id of the clip cut from the given segment.
func SegmentClipID(videoID string, segment int) string {
	return fmt.Sprintf("%s:%d", videoID, segment)
}

// IsSource reports whether the clip tracks a whole source video rather than
// a derived segment.
func (c *Clip) IsSource() bool {
	return c.SegmentIndex == nil
}

// Fail records the error detail and moves the clip to the failed state
// without touching the checkpoint.
func (c *Clip) Fail(detail string) {
	c.State = StateFailed
	c.ErrorDetail = &detail
	c.RetryCount++
}

// Advance persists the completion of one pipeline step.
func (c *Clip) Advance(state ClipState) {
	c.State = state
	c.Checkpoint = state
	c.ErrorDetail = nil
}
