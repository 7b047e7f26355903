package domain

import "time"

// Post is one dispatch attempt recorded for the dashboard.
type Post struct {
	ID          int64
	ClipID      string
	Platform    string
	AccountID   string
	PostedAt    time.Time
	Success     bool
	Receipt     string
	ErrorDetail string
}
