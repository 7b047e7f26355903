package domain

import "time"

// Heartbeat is the liveness record of one worker instance. Online/offline is
// never stored; readers derive it from LastSeen recency.
type Heartbeat struct {
	WorkerID string
	Status   string
	LastSeen time.Time
}
