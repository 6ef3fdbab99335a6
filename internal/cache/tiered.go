package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/guttosm/resilience-layer/internal/apperrors"
	"github.com/guttosm/resilience-layer/internal/circuitbreaker"
	"github.com/guttosm/resilience-layer/internal/logger"
	"github.com/guttosm/resilience-layer/internal/metrics"
	"github.com/guttosm/resilience-layer/internal/monitoring"
)

// Config holds tiered cache configuration.
type Config struct {
	// Name labels the cache's gauges. Empty means "default".
	Name string
	// L1Capacity bounds the number of process-local entries.
	L1Capacity int
	// DefaultTTL applies when Set is called without a TTL. Zero means no expiry.
	DefaultTTL time.Duration
	// CleanupInterval controls the expired-entry sweep. Zero disables it.
	CleanupInterval time.Duration
	// L2Timeout bounds every call to the shared store.
	L2Timeout time.Duration
}

// DefaultConfig returns a default tiered cache configuration.
func DefaultConfig() Config {
	return Config{
		L1Capacity:      1000,
		DefaultTTL:      5 * time.Minute,
		CleanupInterval: time.Minute,
		L2Timeout:       500 * time.Millisecond,
	}
}

// Option configures a Tiered cache.
type Option func(*Tiered)

// WithRecorder sends hit/miss/error samples to r.
func WithRecorder(r monitoring.Recorder) Option {
	return func(t *Tiered) {
		if r != nil {
			t.recorder = r
		}
	}
}

// WithBreaker guards L2 calls with cb.
func WithBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(t *Tiered) {
		if cb != nil {
			t.breaker = cb
		}
	}
}

// Tiered is the two-level cache.
type Tiered struct {
	cfg      Config
	l1       *fifoStore
	store    Store
	breaker  *circuitbreaker.CircuitBreaker
	recorder monitoring.Recorder
	now      func() time.Time

	l1Hits    atomic.Int64
	l2Hits    atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	l2Errors  atomic.Int64

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewTiered creates a tiered cache over store. A nil store means L1-only.
func NewTiered(store Store, cfg Config, opts ...Option) (*Tiered, error) {
	if cfg.L1Capacity <= 0 {
		return nil, apperrors.NewConfigurationError("cache.l1_capacity", "must be positive")
	}
	if cfg.DefaultTTL < 0 {
		return nil, apperrors.NewConfigurationError("cache.default_ttl", "must not be negative")
	}
	if store == nil {
		store = NopStore{}
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}

	t := &Tiered{
		cfg:      cfg,
		l1:       newFIFOStore(cfg.L1Capacity),
		store:    store,
		recorder: monitoring.Nop,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.breaker == nil {
		cbCfg := circuitbreaker.DefaultConfig()
		cbCfg.Name = "cache-l2"
		t.breaker = circuitbreaker.New(cbCfg)
	}

	metrics.UpdateCacheMetrics(cfg.Name, 0, cfg.L1Capacity)

	if cfg.CleanupInterval > 0 {
		t.wg.Add(1)
		go t.cleanupLoop()
	}
	return t, nil
}

// Get looks key up in L1, then L2. An L2 hit is promoted into L1.
func (t *Tiered) Get(ctx context.Context, key string) Result {
	if entry, ok := t.l1.get(key, t.now()); ok {
		t.l1Hits.Add(1)
		t.recorder.Record("cache.l1_hit", 1, nil)
		metrics.RecordCacheOperation("l1", "get", "hit")
		return Result{Hit: true, Value: cloneBytes(entry.Value), Tier: TierL1}
	}

	var (
		value []byte
		ttl   time.Duration
		found bool
	)
	err := t.callL2(ctx, "get", func(ctx context.Context) error {
		var err error
		value, ttl, found, err = t.store.Get(ctx, key)
		return err
	})
	if err != nil || !found {
		t.misses.Add(1)
		t.recorder.Record("cache.miss", 1, nil)
		metrics.RecordCacheOperation("l2", "get", "miss")
		return Result{}
	}

	if ttl <= 0 {
		ttl = t.cfg.DefaultTTL
	}
	t.putL1(key, value, ttl, TierL2)

	t.l2Hits.Add(1)
	t.recorder.Record("cache.l2_hit", 1, nil)
	metrics.RecordCacheOperation("l2", "get", "hit")
	return Result{Hit: true, Value: cloneBytes(value), Tier: TierL2}
}

// Set writes value through to L2 and then into L1. A non-positive ttl uses
// the default TTL for both tiers.
func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = t.cfg.DefaultTTL
	}
	value = cloneBytes(value)

	if err := t.callL2(ctx, "set", func(ctx context.Context) error {
		return t.store.Set(ctx, key, value, ttl)
	}); err == nil {
		metrics.RecordCacheOperation("l2", "set", "success")
	}

	t.putL1(key, value, ttl, TierL1)
	metrics.RecordCacheOperation("l1", "set", "success")
}

// Invalidate removes every key with the given prefix from both tiers.
func (t *Tiered) Invalidate(ctx context.Context, prefix string) {
	removed := t.l1.deletePrefix(prefix)
	metrics.UpdateCacheMetrics(t.cfg.Name, t.l1.len(), t.cfg.L1Capacity)

	var l2Removed int64
	_ = t.callL2(ctx, "invalidate", func(ctx context.Context) error {
		var err error
		l2Removed, err = t.store.DeleteByPrefix(ctx, prefix)
		return err
	})

	metrics.RecordCacheOperation("l1", "invalidate", "success")
	log := logger.Component("cache")
	log.Debug().
		Str("prefix", prefix).
		Int("l1_removed", removed).
		Int64("l2_removed", l2Removed).
		Msg("Cache prefix invalidated")
}

// GetJSON decodes a cached JSON value into dst. It reports whether a value
// was found and decoded.
func (t *Tiered) GetJSON(ctx context.Context, key string, dst any) bool {
	res := t.Get(ctx, key)
	if !res.Hit {
		return false
	}
	return json.Unmarshal(res.Value, dst) == nil
}

// SetJSON encodes value as JSON and caches it.
func (t *Tiered) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	t.Set(ctx, key, raw, ttl)
	return nil
}

// Stats returns a snapshot of the cache counters.
func (t *Tiered) Stats() Stats {
	return Stats{
		L1Size:       t.l1.len(),
		L1Capacity:   t.cfg.L1Capacity,
		L1Hits:       t.l1Hits.Load(),
		L2Hits:       t.l2Hits.Load(),
		Misses:       t.misses.Load(),
		Evictions:    t.evictions.Load(),
		L2Errors:     t.l2Errors.Load(),
		BreakerState: t.breaker.State().String(),
	}
}

// Breaker exposes the L2 circuit breaker for health reporting.
func (t *Tiered) Breaker() *circuitbreaker.CircuitBreaker {
	return t.breaker
}

// Stop ends the cleanup loop. The L2 store is owned by the caller.
func (t *Tiered) Stop() {
	t.once.Do(func() {
		close(t.stopCh)
	})
	t.wg.Wait()
}

func (t *Tiered) putL1(key string, value []byte, ttl time.Duration, tier Tier) {
	entry := Entry{Key: key, Value: value, Tier: tier}
	if ttl > 0 {
		entry.ExpiresAt = t.now().Add(ttl)
	}
	if evicted, ok := t.l1.set(entry); ok {
		t.evictions.Add(1)
		metrics.RecordCacheOperation("l1", "evict", "capacity")
		log := logger.Component("cache")
		log.Debug().Str("key", evicted).Msg("L1 entry evicted")
	}
	metrics.UpdateCacheMetrics(t.cfg.Name, t.l1.len(), t.cfg.L1Capacity)
}

// callL2 runs fn against the shared store under the breaker and timeout. Any
// failure is absorbed here: logged, counted and reported to the recorder.
func (t *Tiered) callL2(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	// The timeout is applied inside the breaker so an L2 timeout counts as a
	// failure while caller cancellation does not.
	err := t.breaker.Execute(ctx, func(ctx context.Context) error {
		if t.cfg.L2Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, t.cfg.L2Timeout)
			defer cancel()
		}
		return fn(ctx)
	})
	if err == nil {
		return nil
	}

	t.l2Errors.Add(1)
	t.recorder.Record("cache.l2_error", 1, map[string]string{"op": op})
	metrics.RecordCacheOperation("l2", op, "error")

	wrapped := &apperrors.CacheBackendError{Op: op, Err: err}
	log := logger.Component("cache")
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		log.Debug().Err(wrapped).Msg("L2 skipped, serving from L1 only")
	} else {
		log.Warn().Err(wrapped).Msg("L2 unavailable, degrading to L1 only")
	}
	return wrapped
}

func (t *Tiered) cleanupLoop() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := t.l1.sweep(t.now()); removed > 0 {
				metrics.UpdateCacheMetrics(t.cfg.Name, t.l1.len(), t.cfg.L1Capacity)
				metrics.RecordCacheOperation("l1", "expire", "swept")
			}
		case <-t.stopCh:
			return
		}
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
