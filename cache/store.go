// Package cache implements the content-addressed edge-cache facade shared by
// the compiled-artifact cache and the generative-result cache. A single
// Store backs both; callers namespace keys by prefix.
package cache

import (
	"context"
	"time"
)

// Store is the facade every cache backend implements: get-by-key with a
// found flag, put-with-TTL.
type Store interface {
	// GetByKey returns the value stored at key. ok is false on a cache miss
	// or expiry.
	GetByKey(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Put stores value at key with the given time-to-live. A zero ttl means
	// the backend's default retention applies.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Counters is the per-process hit/miss tally for a Store.
type Counters struct {
	Hits   int64
	Misses int64
}

// CounterReporter is implemented by Store backends that track their own
// hit/miss counters locally (the in-memory backend). Redis-backed stores
// report through telemetry.Metrics instead, since counters there should
// survive process restarts.
type CounterReporter interface {
	Counters() Counters
}
