// Package ratelimit bounds the public verification endpoint per client. The
// window state lives in an injected store so the limiter itself stays free of
// globals and can be shared or reset explicitly.
package ratelimit

import (
	"context"
	"time"
)

// Result describes one admission decision.
type Result struct {
	Allowed   bool
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// BucketStore tracks request counts per key over a sliding window.
type BucketStore interface {
	// Allow records one request for key and reports whether it fits within
	// limit over the trailing window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)

	// Reset clears the counter for key.
	Reset(ctx context.Context, key string) error
}
