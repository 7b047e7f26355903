package health

import "time"

// Status classifies how fresh an account's credentials are.
type Status string

const (
	Healthy      Status = "healthy"
	ExpiringSoon Status = "expiring_soon"
	Expired      Status = "expired"
)

// Evaluate classifies credentials updated at updatedAt as seen from now.
// Credentials older than expireAfter are expired and the account must not
// be scheduled; within warnWindow of expiry they are expiring soon and
// the operator should be nudged to refresh them.
func Evaluate(updatedAt, now time.Time, expireAfter, warnWindow time.Duration) Status {
	age := now.Sub(updatedAt)
	if age >= expireAfter {
		return Expired
	}
	if age >= expireAfter-warnWindow {
		return ExpiringSoon
	}
	return Healthy
}

// Postable reports whether an account with this credential status may be
// given work.
func Postable(s Status) bool {
	return s != Expired
}
