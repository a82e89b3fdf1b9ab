package notification

import (
	"sync"
	"time"
)

// TokenBucketRateLimiter implements token bucket rate limiting. One token is
// returned to the bucket per refillRate; a non-positive refillRate never refills.
type TokenBucketRateLimiter struct {
	capacity   int
	tokens     int
	refillRate time.Duration
	lastRefill time.Time
	now        func() time.Time
	mu         sync.Mutex
}

// NewTokenBucketRateLimiter creates a new token bucket rate limiter
func NewTokenBucketRateLimiter(capacity int, refillRate time.Duration) *TokenBucketRateLimiter {
	return newTokenBucket(capacity, refillRate, time.Now)
}

func newTokenBucket(capacity int, refillRate time.Duration, now func() time.Time) *TokenBucketRateLimiter {
	return &TokenBucketRateLimiter{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: now(),
		now:        now,
	}
}

// Allow checks if a request is allowed under the rate limit
func (tb *TokenBucketRateLimiter) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(tb.now())

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}

	return false
}

// refill credits whole elapsed intervals and keeps the remainder for the next call.
func (tb *TokenBucketRateLimiter) refill(now time.Time) {
	if tb.refillRate <= 0 {
		return
	}

	intervals := int(now.Sub(tb.lastRefill) / tb.refillRate)
	if intervals <= 0 {
		return
	}

	tb.tokens = min(tb.capacity, tb.tokens+intervals)
	if tb.tokens == tb.capacity {
		tb.lastRefill = now
		return
	}
	tb.lastRefill = tb.lastRefill.Add(time.Duration(intervals) * tb.refillRate)
}
