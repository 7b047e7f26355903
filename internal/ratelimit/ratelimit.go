package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter throttles outbound platform calls per account so a burst of
// scheduler activity cannot hammer a single account's API surface.
type Limiter interface {
	Allow(accountID string) bool
}

// InMemoryLimiter keeps one token bucket per account id.
type InMemoryLimiter struct {
	accounts map[string]*rate.Limiter
	mu       sync.Mutex
	r        rate.Limit
	b        int
}

// NewInMemoryLimiter allows `requests` actions per `per`, with `burst`
// headroom. Example: NewInMemoryLimiter(1, time.Minute, 2).
func NewInMemoryLimiter(requests int, per time.Duration, burst int) Limiter {
	return &InMemoryLimiter{
		accounts: make(map[string]*rate.Limiter),
		r:        rate.Every(per / time.Duration(requests)),
		b:        burst,
	}
}

func (l *InMemoryLimiter) Allow(accountID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.accounts[accountID]
	if !exists {
		limiter = rate.NewLimiter(l.r, l.b)
		l.accounts[accountID] = limiter
	}
	return limiter.Allow()
}
