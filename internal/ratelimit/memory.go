package ratelimit

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter keeps window counters in an expiring in-process cache.
type MemoryLimiter struct {
	c      *gocache.Cache
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewMemoryLimiter allows limit requests per key per window.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		c:      gocache.New(window, time.Minute),
		limit:  int64(limit),
		window: window,
		now:    time.Now,
	}
}

// Allow implements Limiter.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	start, left := window(l.now(), l.window)
	k := bucketKey("", key, start)

	// Add fails when the bucket exists; either way it exists afterwards.
	_ = l.c.Add(k, int64(0), left+time.Second)
	hits, err := l.c.IncrementInt64(k, 1)
	if err != nil {
		return Result{}, err
	}
	return result(hits, l.limit, left), nil
}
