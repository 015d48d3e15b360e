package v1

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter enforces a per-user request rate on the chat endpoints.
// Limiters are created lazily per key and never evicted; the key space is
// bounded by the user table.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewRateLimiter allows limit requests per second with the given burst.
func NewRateLimiter(limit rate.Limit, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// Allow reports whether the keyed caller may proceed.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	limiter, ok := r.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(r.limit, r.burst)
		r.limiters[key] = limiter
	}
	r.mu.Unlock()
	return limiter.Allow()
}

// Global chat rate limiter: one request per 2 seconds, burst of 5.
var globalChatLimiter = NewRateLimiter(rate.Limit(0.5), 5)
