package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter throttles actions per key
type Limiter interface {
	Allow(key string, now time.Time) bool
	Forget(key string)
}

// InMemoryLimiter keeps one token bucket per key
type InMemoryLimiter struct {
	keys map[string]*rate.Limiter
	mu   sync.Mutex
	r    rate.Limit
	b    int
}

// NewInMemoryLimiter creates a new rate limiter
// Example: NewInMemoryLimiter(5, 10*time.Second, 5) -> one token every 2 seconds, burst of 5
func NewInMemoryLimiter(requests int, per time.Duration, burst int) *InMemoryLimiter {
	r := rate.Inf
	if requests > 0 && per > 0 {
		r = rate.Every(per / time.Duration(requests))
	}
	return &InMemoryLimiter{
		keys: make(map[string]*rate.Limiter),
		r:    r,
		b:    burst,
	}
}

// Allow reports whether an action for key may happen at now
func (l *InMemoryLimiter) Allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.keys[key]
	if !exists {
		limiter = rate.NewLimiter(l.r, l.b)
		l.keys[key] = limiter
	}

	return limiter.AllowN(now, 1)
}

// Forget drops the bucket for key
func (l *InMemoryLimiter) Forget(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.keys, key)
}
