package scheduler

import "context"

// Client drains the queue of finished clips onto social accounts, within
// the global and per-platform auto-posting switches and each account's
// daily cap.
type Client interface {
	// RunCycle posts at most one batch. It is what the jittered schedule
	// invokes, and what the control API triggers on demand.
	RunCycle(ctx context.Context) error
	// ScheduleCycles installs the recurring randomized-interval job.
	ScheduleCycles(ctx context.Context) error
}
