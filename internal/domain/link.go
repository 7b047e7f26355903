package domain

import "time"

// Link is one promotional link candidate.
type Link struct {
	URL     string `json:"url"`
	Niche   string `json:"niche"`
	Weight  int    `json:"weight"`
	Enabled bool   `json:"enabled"`
}

// LinkUsage is one recorded pick, kept so the rotator avoids immediate reuse.
type LinkUsage struct {
	ID     int64
	URL    string
	Niche  string
	UsedAt time.Time
}
