package config

import (
	"fmt"
	"slices"

	"github.com/guttosm/resilience-layer/internal/apperrors"
)

// PriorityClasses lists the recognised priority class names.
var PriorityClasses = []string{"critical", "high", "normal", "low"}

// Validate checks capacities and thresholds. The first violation is returned
// as an *apperrors.ConfigurationError.
func (c Config) Validate() error {
	if c.Cache.L1Capacity <= 0 {
		return apperrors.NewConfigurationError("cache.l1_capacity", "must be positive")
	}
	if c.Cache.DefaultTTL < 0 {
		return apperrors.NewConfigurationError("cache.default_ttl", "must not be negative")
	}
	switch c.Cache.L2Backend {
	case "", "none", "redis", "mongo":
	default:
		return apperrors.NewConfigurationError("cache.l2_backend", fmt.Sprintf("unknown backend %q", c.Cache.L2Backend))
	}
	if c.Cache.L2Backend == "mongo" && !c.Database.Enabled {
		return apperrors.NewConfigurationError("cache.l2_backend", "mongo backend requires database.enabled")
	}

	if c.CircuitBreaker.FailureThreshold <= 0 || c.CircuitBreaker.SuccessThreshold <= 0 {
		return apperrors.NewConfigurationError("circuit_breaker", "thresholds must be positive")
	}

	if err := c.Router.validate(); err != nil {
		return err
	}

	if c.Queue.SoftCap <= 0 {
		return apperrors.NewConfigurationError("queue.soft_cap", "must be positive")
	}
	if c.Queue.Retention <= 0 {
		return apperrors.NewConfigurationError("queue.retention", "must be positive")
	}
	for name := range c.Queue.Classes {
		if !slices.Contains(PriorityClasses, name) {
			return apperrors.NewConfigurationError("queue.classes", fmt.Sprintf("unknown class %q", name))
		}
	}
	for _, name := range PriorityClasses {
		policy, ok := c.Queue.Classes[name]
		if !ok {
			return apperrors.NewConfigurationError("queue.classes", fmt.Sprintf("missing class %q", name))
		}
		if policy.Concurrency <= 0 || policy.MaxAttempts <= 0 {
			return apperrors.NewConfigurationError("queue.classes."+name, "concurrency and max_attempts must be positive")
		}
	}

	if c.Metrics.MaxSamples <= 0 || c.Metrics.MaxAlerts <= 0 {
		return apperrors.NewConfigurationError("metrics", "max_samples and max_alerts must be positive")
	}
	for name, threshold := range c.Metrics.AlertThresholds {
		if threshold <= 0 {
			return apperrors.NewConfigurationError("metrics.alert_thresholds."+name, "must be positive")
		}
	}
	return nil
}

func (r RouterConfig) validate() error {
	seen := make(map[string]bool, len(r.Targets))
	for _, t := range r.Targets {
		if t.ID == "" || t.Address == "" {
			return apperrors.NewConfigurationError("router.targets", "id and address are required")
		}
		if seen[t.ID] {
			return apperrors.NewConfigurationError("router.targets", fmt.Sprintf("duplicate id %q", t.ID))
		}
		seen[t.ID] = true
	}
	if r.ProbeInterval <= 0 || r.ProbeTimeout <= 0 {
		return apperrors.NewConfigurationError("router.probe", "interval and timeout must be positive")
	}
	if r.WindowSize <= 0 {
		return apperrors.NewConfigurationError("router.window_size", "must be positive")
	}
	if r.DegradedErrorRate > r.UnhealthyErrorRate {
		return apperrors.NewConfigurationError("router.error_rate", "degraded threshold exceeds unhealthy threshold")
	}
	if r.DegradedLatencyMs > r.UnhealthyLatencyMs {
		return apperrors.NewConfigurationError("router.latency_ms", "degraded threshold exceeds unhealthy threshold")
	}
	return nil
}
