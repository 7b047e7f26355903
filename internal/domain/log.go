package domain

import "time"

type LogLevel string

const (
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// LogEntry is one worker activity record, queryable by the dashboard.
type LogEntry struct {
	ID        int64
	Level     LogLevel
	Component string
	Message   string
	CreatedAt time.Time
}
