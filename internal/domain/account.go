package domain

import (
	"fmt"
	"time"
)

// Account is one credentialed identity on one platform. The credential blob
// itself (a browser session) is opaque to the orchestrator; only its
// freshness timestamp matters here.
type Account struct {
	ID                   string
	Platform             string
	Name                 string
	CredentialsPath      string
	CredentialsUpdatedAt time.Time
	DailyCap             int
	PostsToday           int
	// PostDay is the UTC date the counter belongs to. The gateway resets
	// the counter atomically when the day moves.
	PostDay string
	Weight  int
}

// AccountID derives the stable id for a platform/name pair.
func AccountID(platform, name string) string {
	return fmt.Sprintf("%s_%s", platform, name)
}

// PostDayOf formats t as the daily counter boundary key.
func PostDayOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
