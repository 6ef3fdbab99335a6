// Package cache provides a two-level read/write cache: a bounded process-local
// L1 in front of a shared L2 store. The cache is advisory; L2 failures degrade
// it to L1-only and are never returned to callers.
package cache

import (
	"context"
	"time"
)

// Store is the shared (L2) tier. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value and its remaining TTL (zero when the store does not
	// track one). found is false when the key does not exist.
	Get(ctx context.Context, key string) (value []byte, ttl time.Duration, found bool, err error)
	// Set stores value with the given TTL. A zero TTL means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DeleteByPrefix removes every key starting with prefix and returns how many were removed.
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
	// Close releases the store's resources.
	Close() error
}

// NopStore is an L2 that never holds anything; it turns the cache into L1-only.
type NopStore struct{}

func (NopStore) Get(context.Context, string) ([]byte, time.Duration, bool, error) {
	return nil, 0, false, nil
}

func (NopStore) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (NopStore) DeleteByPrefix(context.Context, string) (int64, error) { return 0, nil }

func (NopStore) Ping(context.Context) error { return nil }

func (NopStore) Close() error { return nil }

// Tier identifies where a value was found.
type Tier string

const (
	TierNone Tier = ""
	TierL1   Tier = "l1"
	TierL2   Tier = "l2"
)

// Result is returned by Get.
type Result struct {
	Hit   bool
	Value []byte
	Tier  Tier
}

// Entry describes a value held in L1.
type Entry struct {
	Key       string
	Value     []byte
	ExpiresAt time.Time
	Tier      Tier
}

// Stats is a snapshot of cache counters.
type Stats struct {
	L1Size       int    `json:"l1_size"`
	L1Capacity   int    `json:"l1_capacity"`
	L1Hits       int64  `json:"l1_hits"`
	L2Hits       int64  `json:"l2_hits"`
	Misses       int64  `json:"misses"`
	Evictions    int64  `json:"evictions"`
	L2Errors     int64  `json:"l2_errors"`
	BreakerState string `json:"breaker_state"`
}
