package utils

import (
	"sync"
	"time"
)

// Simple sliding window rate limiter
type SlidingWindowRateLimiter struct {
	requests []time.Time
	limit    int
	window   time.Duration
	mutex    sync.Mutex
}

// NewSlidingWindowRateLimiter creates a sliding window rate limiter
func NewSlidingWindowRateLimiter(limit int, window time.Duration) *SlidingWindowRateLimiter {
	return &SlidingWindowRateLimiter{
		requests: make([]time.Time, 0),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed
func (swrl *SlidingWindowRateLimiter) Allow() bool {
	allowed, _ := swrl.AllowAt(time.Now())
	return allowed
}

// AllowAt records a request at now and returns whether it fits in the window
// together with the remaining budget.
func (swrl *SlidingWindowRateLimiter) AllowAt(now time.Time) (bool, int) {
	swrl.mutex.Lock()
	defer swrl.mutex.Unlock()

	cutoff := now.Add(-swrl.window)

	// Remove old requests outside the window
	validRequests := swrl.requests[:0]
	for _, req := range swrl.requests {
		if req.After(cutoff) {
			validRequests = append(validRequests, req)
		}
	}
	swrl.requests = validRequests

	if len(swrl.requests) < swrl.limit {
		swrl.requests = append(swrl.requests, now)
		return true, swrl.limit - len(swrl.requests)
	}

	return false, 0
}

// KeyedRateLimiter holds one sliding window per key.
type KeyedRateLimiter struct {
	limit    int
	window   time.Duration
	mutex    sync.Mutex
	limiters map[string]*SlidingWindowRateLimiter
}

func NewKeyedRateLimiter(limit int, window time.Duration) *KeyedRateLimiter {
	return &KeyedRateLimiter{
		limit:    limit,
		window:   window,
		limiters: make(map[string]*SlidingWindowRateLimiter),
	}
}

func (k *KeyedRateLimiter) Allow(key string) (bool, int) {
	k.mutex.Lock()
	limiter, ok := k.limiters[key]
	if !ok {
		limiter = NewSlidingWindowRateLimiter(k.limit, k.window)
		k.limiters[key] = limiter
	}
	k.mutex.Unlock()

	return limiter.AllowAt(time.Now())
}
