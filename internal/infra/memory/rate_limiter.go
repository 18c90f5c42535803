package memory

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// RateLimiter is a fixed-window per-key counter for single-process
// deployments without redis.
type RateLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu   sync.Mutex
	hits map[string]int
	// lastSweep bounds the hits map: stale window keys are dropped once per window.
	lastSweep int64
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:  limit,
		window: window,
		clock:  time.Now,
		hits:   make(map[string]int),
	}
}

func (l *RateLimiter) Allow(_ context.Context, key string) bool {
	bucket := l.clock().UnixNano() / int64(l.window)
	windowKey := key + ":" + strconv.FormatInt(bucket, 10)

	l.mu.Lock()
	defer l.mu.Unlock()
	if bucket != l.lastSweep {
		l.hits = make(map[string]int)
		l.lastSweep = bucket
	}
	l.hits[windowKey]++
	return l.hits[windowKey] <= l.limit
}
