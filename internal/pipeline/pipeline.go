package pipeline

import "context"

// Client is the content engine: it discovers new source videos and walks
// every item through download, transcription, highlight finding, editing
// and captioning until it is queued for posting.
type Client interface {
	// RunOnce performs one full discovery plus processing pass.
	RunOnce(ctx context.Context) error
	// ProcessItem reruns a single item from its checkpoint, regardless of
	// its retry budget. The control API uses it for manual retries.
	ProcessItem(ctx context.Context, id string) error
	// ScheduleDailyRun installs the recurring daily pass.
	ScheduleDailyRun(ctx context.Context) error
}
