// Package ratelimit implements the fixed-window limiter applied to webhook
// routes. Two backends share the algorithm: an in-process one for a single
// replica and a Redis one when several replicas must share a budget.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	// ResetAfter is the time left in the current window.
	ResetAfter time.Duration
}

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// window computes the fixed-window bucket for now.
func window(now time.Time, size time.Duration) (start time.Time, left time.Duration) {
	start = now.Truncate(size)
	left = start.Add(size).Sub(now)
	if left <= 0 {
		left = size
	}
	return start, left
}

func bucketKey(prefix, key string, start time.Time) string {
	return fmt.Sprintf("%s%s:%d", prefix, strings.ReplaceAll(key, " ", "_"), start.Unix())
}

func result(hits, limit int64, left time.Duration) Result {
	remaining := limit - hits
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:    hits <= limit,
		Limit:      limit,
		Remaining:  remaining,
		ResetAfter: left,
	}
}
