package notifier

// Client delivers operator alerts: credential expiry warnings, repeated
// pipeline failures, backend fallback. Alerts are best-effort; a failed
// delivery is logged and dropped.
type Client interface {
	Notify(text string)
}
