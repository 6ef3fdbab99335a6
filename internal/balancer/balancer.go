// Package balancer selects backend targets by round-robin over the targets
// currently classified healthy. Health is derived from a rolling window of
// call and probe outcomes.
package balancer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/guttosm/resilience-layer/internal/apperrors"
	"github.com/guttosm/resilience-layer/internal/logger"
	"github.com/guttosm/resilience-layer/internal/metrics"
	"github.com/guttosm/resilience-layer/internal/monitoring"
)

var (
	// ErrNoHealthyTarget is returned by Select when no target qualifies.
	ErrNoHealthyTarget = errors.New("no healthy target available")
	// ErrUnknownTarget is returned by RecordOutcome for an ID outside the pool.
	ErrUnknownTarget = errors.New("unknown target")
)

// Status is a target's health classification.
type Status int

const (
	StatusHealthy Status = iota
	StatusDegraded
	StatusUnhealthy
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// MarshalText renders the status name in JSON responses.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "healthy":
		*s = StatusHealthy
	case "degraded":
		*s = StatusDegraded
	case "unhealthy":
		*s = StatusUnhealthy
	default:
		return fmt.Errorf("unknown target status %q", text)
	}
	return nil
}

// TargetConfig describes one backend in the fixed pool.
type TargetConfig struct {
	ID      string
	Address string
}

// TargetRef identifies the target chosen by Select.
type TargetRef struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

// Config holds classification thresholds and probe settings.
type Config struct {
	// WindowSize is the number of most recent outcomes the error rate covers.
	WindowSize int
	// DegradedErrorRate and UnhealthyErrorRate are exclusive upper bounds.
	DegradedErrorRate  float64
	UnhealthyErrorRate float64
	// DegradedLatencyMs and UnhealthyLatencyMs apply to the latest outcome.
	DegradedLatencyMs  int64
	UnhealthyLatencyMs int64
	// ProbeInterval is the pause between probe rounds. Zero disables probing.
	ProbeInterval time.Duration
	// ProbeTimeout bounds a single probe; a timed-out probe is a failure.
	ProbeTimeout time.Duration
}

// DefaultConfig returns the default router configuration.
func DefaultConfig() Config {
	return Config{
		WindowSize:         100,
		DegradedErrorRate:  0.05,
		UnhealthyErrorRate: 0.10,
		DegradedLatencyMs:  2000,
		UnhealthyLatencyMs: 5000,
		ProbeInterval:      30 * time.Second,
		ProbeTimeout:       5 * time.Second,
	}
}

func (c Config) validate() error {
	switch {
	case c.WindowSize <= 0:
		return apperrors.NewConfigurationError("router.window_size", "must be positive")
	case c.DegradedErrorRate < 0 || c.UnhealthyErrorRate < c.DegradedErrorRate:
		return apperrors.NewConfigurationError("router.error_rate", "require 0 <= degraded <= unhealthy")
	case c.DegradedLatencyMs < 0 || c.UnhealthyLatencyMs < c.DegradedLatencyMs:
		return apperrors.NewConfigurationError("router.latency_ms", "require 0 <= degraded <= unhealthy")
	case c.ProbeInterval < 0 || c.ProbeTimeout < 0:
		return apperrors.NewConfigurationError("router.probe", "interval and timeout must not be negative")
	case c.ProbeInterval > 0 && c.ProbeTimeout == 0:
		return apperrors.NewConfigurationError("router.probe", "timeout is required when probing is enabled")
	}
	return nil
}

// classify maps an error rate and the latest response time to a status.
func (c Config) classify(errorRate float64, responseTimeMs int64) Status {
	switch {
	case errorRate > c.UnhealthyErrorRate || responseTimeMs > c.UnhealthyLatencyMs:
		return StatusUnhealthy
	case errorRate > c.DegradedErrorRate || responseTimeMs > c.DegradedLatencyMs:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

// Option configures a Router.
type Option func(*Router)

// WithRecorder sends outcome and transition samples to r.
func WithRecorder(r monitoring.Recorder) Option {
	return func(rt *Router) {
		if r != nil {
			rt.recorder = r
		}
	}
}

// WithProber replaces the default HTTP prober.
func WithProber(p Prober) Option {
	return func(rt *Router) {
		if p != nil {
			rt.prober = p
		}
	}
}

// Router is the health-aware target selector. The target pool is fixed at
// construction.
type Router struct {
	cfg      Config
	targets  []*target
	byID     map[string]*target
	recorder monitoring.Recorder
	prober   Prober
	now      func() time.Time

	mu     sync.Mutex
	cursor int

	probeMu sync.Mutex
	cancel  func()
	wg      sync.WaitGroup
}

// New creates a router over targets. Every target starts healthy.
func New(targets []TargetConfig, cfg Config, opts ...Option) (*Router, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, apperrors.NewConfigurationError("router.targets", "at least one target is required")
	}

	r := &Router{
		cfg:      cfg,
		targets:  make([]*target, 0, len(targets)),
		byID:     make(map[string]*target, len(targets)),
		recorder: monitoring.Nop,
		prober:   NewHTTPProber(nil, "/health"),
		now:      time.Now,
		cursor:   -1,
	}
	for _, tc := range targets {
		if tc.ID == "" {
			return nil, apperrors.NewConfigurationError("router.targets", "target id must not be empty")
		}
		if _, dup := r.byID[tc.ID]; dup {
			return nil, apperrors.NewConfigurationError("router.targets", fmt.Sprintf("duplicate target id %q", tc.ID))
		}
		t := newTarget(tc, cfg.WindowSize)
		r.targets = append(r.targets, t)
		r.byID[tc.ID] = t
		metrics.SetTargetStatus(tc.ID, int(StatusHealthy))
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Select returns the next healthy target after the cursor, skipping excludeID.
// It walks the full target list once and never rebuilds a filtered slice.
func (r *Router) Select(excludeID string) (TargetRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.targets)
	for step := 1; step <= n; step++ {
		idx := (r.cursor + step) % n
		t := r.targets[idx]
		if t.cfg.ID == excludeID || t.currentStatus() != StatusHealthy {
			continue
		}
		r.cursor = idx
		return TargetRef{ID: t.cfg.ID, Address: t.cfg.Address}, nil
	}
	return TargetRef{}, ErrNoHealthyTarget
}

// RecordOutcome feeds one call or probe result into the target's window and
// reclassifies it.
func (r *Router) RecordOutcome(id string, responseTimeMs int64, success bool) error {
	t, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTarget, id)
	}

	from, to, errorRate := t.record(r.cfg, responseTimeMs, success, r.now())

	tags := map[string]string{"target": id}
	r.recorder.Record("router.response_time_ms", float64(responseTimeMs), tags)
	r.recorder.Record("router.error_rate", errorRate, tags)
	metrics.RecordTargetOutcome(id, time.Duration(responseTimeMs)*time.Millisecond, success)

	if from != to {
		r.logTransition(id, from, to, errorRate, responseTimeMs)
		r.recorder.Record("router.status_change", float64(to), map[string]string{
			"target": id,
			"from":   from.String(),
			"to":     to.String(),
		})
		metrics.SetTargetStatus(id, int(to))
	}
	return nil
}

func (r *Router) logTransition(id string, from, to Status, errorRate float64, responseTimeMs int64) {
	log := logger.Component("balancer")
	event := log.Info()
	if to > from {
		event = log.Warn()
	}
	event.
		Str("target", id).
		Str("from", from.String()).
		Str("to", to.String()).
		Float64("error_rate", errorRate).
		Int64("response_time_ms", responseTimeMs).
		Msg("Target status changed")
}

// Stats returns a read-only snapshot of every target.
func (r *Router) Stats() Stats {
	stats := Stats{
		Targets: make([]TargetSnapshot, 0, len(r.targets)),
		Total:   len(r.targets),
	}
	for _, t := range r.targets {
		snap := t.snapshot()
		stats.Targets = append(stats.Targets, snap)
		switch snap.Status {
		case StatusHealthy:
			stats.Healthy++
		case StatusDegraded:
			stats.Degraded++
		case StatusUnhealthy:
			stats.Unhealthy++
		}
	}
	return stats
}

// Targets returns the configured pool in order.
func (r *Router) Targets() []TargetRef {
	refs := make([]TargetRef, len(r.targets))
	for i, t := range r.targets {
		refs[i] = TargetRef{ID: t.cfg.ID, Address: t.cfg.Address}
	}
	return refs
}
