// Package service composes the cache, router and job queue into the request
// path and the background alert pipeline.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/guttosm/resilience-layer/internal/apperrors"
	"github.com/guttosm/resilience-layer/internal/balancer"
	"github.com/guttosm/resilience-layer/internal/cache"
	"github.com/guttosm/resilience-layer/internal/logger"
	"github.com/guttosm/resilience-layer/internal/monitoring"
)

const lookupKeyPrefix = "lookup:"

// Cache is the subset of the tiered cache the lookup path uses.
type Cache interface {
	Get(ctx context.Context, key string) cache.Result
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Invalidate(ctx context.Context, prefix string)
}

// TargetSelector is the subset of the router the lookup path uses.
type TargetSelector interface {
	Select(excludeID string) (balancer.TargetRef, error)
	RecordOutcome(id string, responseTimeMs int64, success bool) error
}

// Source says where a lookup result came from.
type Source string

const (
	SourceL1      Source = "cache_l1"
	SourceL2      Source = "cache_l2"
	SourceBackend Source = "backend"
)

// LookupResult is the value returned for a path.
type LookupResult struct {
	Value    []byte
	Source   Source
	TargetID string
}

// LookupService resolves a path through the cache and, on a miss, a healthy backend.
type LookupService interface {
	Lookup(ctx context.Context, path string) (*LookupResult, error)
	Invalidate(ctx context.Context, prefix string)
}

// LookupOption configures the lookup service.
type LookupOption func(*lookupService)

// WithCacheTTL sets the TTL for cached backend responses. Zero uses the cache default.
func WithCacheTTL(ttl time.Duration) LookupOption {
	return func(s *lookupService) {
		s.ttl = ttl
	}
}

// WithCallTimeout bounds each outbound call.
func WithCallTimeout(d time.Duration) LookupOption {
	return func(s *lookupService) {
		s.callTimeout = d
	}
}

// WithMaxAttempts sets how many distinct targets one lookup may try.
func WithMaxAttempts(n int) LookupOption {
	return func(s *lookupService) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithLookupRecorder sends lookup samples to r.
func WithLookupRecorder(r monitoring.Recorder) LookupOption {
	return func(s *lookupService) {
		if r != nil {
			s.recorder = r
		}
	}
}

type lookupService struct {
	cache       Cache
	router      TargetSelector
	fetcher     Fetcher
	recorder    monitoring.Recorder
	ttl         time.Duration
	callTimeout time.Duration
	maxAttempts int
}

// NewLookupService creates a lookup service.
func NewLookupService(c Cache, router TargetSelector, fetcher Fetcher, opts ...LookupOption) LookupService {
	s := &lookupService{
		cache:       c,
		router:      router,
		fetcher:     fetcher,
		recorder:    monitoring.Nop,
		callTimeout: 10 * time.Second,
		maxAttempts: 2,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup returns the cached value for path or fetches it from a healthy
// target. A failed call is retried once against a different target.
func (s *lookupService) Lookup(ctx context.Context, path string) (*LookupResult, error) {
	key := lookupKeyPrefix + path

	if res := s.cache.Get(ctx, key); res.Hit {
		source := SourceL1
		if res.Tier == cache.TierL2 {
			source = SourceL2
		}
		return &LookupResult{Value: res.Value, Source: source}, nil
	}

	var (
		exclude string
		lastErr error
	)
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		target, err := s.router.Select(exclude)
		if err != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, err
		}

		value, err := s.call(ctx, target, path)
		if err == nil {
			s.cache.Set(ctx, key, value, s.ttl)
			return &LookupResult{Value: value, Source: SourceBackend, TargetID: target.ID}, nil
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.TargetFault() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = &apperrors.BackendError{TargetID: target.ID, Err: err}
		exclude = target.ID

		log := logger.Component("lookup")
		log.Warn().
			Err(lastErr).
			Str("path", path).
			Int("attempt", attempt+1).
			Msg("Backend call failed")
	}
	return nil, lastErr
}

// call performs one outbound call and reports its outcome to the router.
// Client errors (4xx) count as a healthy response.
func (s *lookupService) call(ctx context.Context, target balancer.TargetRef, path string) ([]byte, error) {
	callCtx := ctx
	if s.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
	}

	start := time.Now()
	value, err := s.fetcher.Fetch(callCtx, target, path)
	elapsed := time.Since(start).Milliseconds()

	// The caller giving up says nothing about the target.
	if err != nil && ctx.Err() != nil {
		return nil, err
	}

	success := err == nil
	var statusErr *StatusError
	if errors.As(err, &statusErr) && !statusErr.TargetFault() {
		success = true
	}
	_ = s.router.RecordOutcome(target.ID, elapsed, success)
	s.recorder.Record("lookup.backend_ms", float64(elapsed), map[string]string{"target": target.ID})

	return value, err
}

// Invalidate drops cached lookups whose path starts with prefix.
func (s *lookupService) Invalidate(ctx context.Context, prefix string) {
	s.cache.Invalidate(ctx, lookupKeyPrefix+prefix)
}
