package jobqueue

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/guttosm/resilience-layer/internal/apperrors"
)

// BackoffPolicy is an exponential retry curve without jitter.
type BackoffPolicy struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// ClassPolicy binds a priority class to its concurrency ceiling and retry budget.
type ClassPolicy struct {
	Concurrency int
	MaxAttempts int
	Backoff     BackoffPolicy
}

// DefaultPolicies returns the built-in class policies.
func DefaultPolicies() map[Priority]ClassPolicy {
	return map[Priority]ClassPolicy{
		PriorityCritical: {Concurrency: 10, MaxAttempts: 5, Backoff: BackoffPolicy{Initial: 100 * time.Millisecond, Max: 5 * time.Second, Multiplier: 2}},
		PriorityHigh:     {Concurrency: 5, MaxAttempts: 3, Backoff: BackoffPolicy{Initial: 500 * time.Millisecond, Max: 10 * time.Second, Multiplier: 2}},
		PriorityNormal:   {Concurrency: 3, MaxAttempts: 3, Backoff: BackoffPolicy{Initial: time.Second, Max: 30 * time.Second, Multiplier: 2}},
		PriorityLow:      {Concurrency: 1, MaxAttempts: 2, Backoff: BackoffPolicy{Initial: 5 * time.Second, Max: time.Minute, Multiplier: 2}},
	}
}

func (p ClassPolicy) validate(class Priority) error {
	field := fmt.Sprintf("queue.classes.%s", class)
	switch {
	case p.Concurrency <= 0:
		return apperrors.NewConfigurationError(field, "concurrency must be positive")
	case p.MaxAttempts <= 0:
		return apperrors.NewConfigurationError(field, "max attempts must be positive")
	case p.Backoff.Initial < 0 || p.Backoff.Max < p.Backoff.Initial:
		return apperrors.NewConfigurationError(field, "backoff requires 0 <= initial <= max")
	case p.Backoff.Multiplier < 1:
		return apperrors.NewConfigurationError(field, "backoff multiplier must be at least 1")
	}
	return nil
}

// Delay returns the wait before retry number attempt (1-based):
// Initial * Multiplier^(attempt-1), capped at Max.
func (b BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 || b.Initial <= 0 {
		return 0
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = b.Initial
	eb.MaxInterval = b.Max
	eb.Multiplier = b.Multiplier
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0
	eb.Reset()

	var d time.Duration
	for i := 0; i < attempt; i++ {
		d = eb.NextBackOff()
		if d >= b.Max {
			return b.Max
		}
	}
	return d
}
