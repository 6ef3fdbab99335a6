package repository

import (
	"context"
	"errors"

	"github.com/guttosm/resilience-layer/internal/circuitbreaker"
)

// JobHistoryRepositoryWithCircuitBreaker wraps a job history repository with
// circuit breaker protection.
type JobHistoryRepositoryWithCircuitBreaker struct {
	repo           JobHistoryRepositoryInterface
	circuitBreaker *circuitbreaker.CircuitBreaker
}

// NewJobHistoryRepositoryWithCircuitBreaker creates a new repository wrapper with circuit breaker.
func NewJobHistoryRepositoryWithCircuitBreaker(repo JobHistoryRepositoryInterface, cb *circuitbreaker.CircuitBreaker) *JobHistoryRepositoryWithCircuitBreaker {
	return &JobHistoryRepositoryWithCircuitBreaker{
		repo:           repo,
		circuitBreaker: cb,
	}
}

// Insert archives a job. When the circuit is open the record is dropped;
// the archive is best effort.
func (r *JobHistoryRepositoryWithCircuitBreaker) Insert(ctx context.Context, doc *JobDocument) error {
	err := r.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		return r.repo.Insert(ctx, doc)
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return nil
	}
	return err
}

// Query returns archived jobs with circuit breaker protection.
func (r *JobHistoryRepositoryWithCircuitBreaker) Query(ctx context.Context, q JobHistoryQuery) ([]*JobDocument, error) {
	var result []*JobDocument
	err := r.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		var cbErr error
		result, cbErr = r.repo.Query(ctx, q)
		return cbErr
	})
	return result, err
}

// Count returns the archived job count with circuit breaker protection.
func (r *JobHistoryRepositoryWithCircuitBreaker) Count(ctx context.Context, q JobHistoryQuery) (int64, error) {
	var result int64
	err := r.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		var cbErr error
		result, cbErr = r.repo.Count(ctx, q)
		return cbErr
	})
	return result, err
}

// GetCircuitBreaker returns the underlying circuit breaker for monitoring.
func (r *JobHistoryRepositoryWithCircuitBreaker) GetCircuitBreaker() *circuitbreaker.CircuitBreaker {
	return r.circuitBreaker
}

// AlertsRepositoryWithCircuitBreaker wraps an alerts repository with circuit
// breaker protection.
type AlertsRepositoryWithCircuitBreaker struct {
	repo           AlertsRepositoryInterface
	circuitBreaker *circuitbreaker.CircuitBreaker
}

// NewAlertsRepositoryWithCircuitBreaker creates a new repository wrapper with circuit breaker.
func NewAlertsRepositoryWithCircuitBreaker(repo AlertsRepositoryInterface, cb *circuitbreaker.CircuitBreaker) *AlertsRepositoryWithCircuitBreaker {
	return &AlertsRepositoryWithCircuitBreaker{
		repo:           repo,
		circuitBreaker: cb,
	}
}

// Insert archives an alert. When the circuit is open the alert is dropped.
func (r *AlertsRepositoryWithCircuitBreaker) Insert(ctx context.Context, doc *AlertDocument) error {
	err := r.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		return r.repo.Insert(ctx, doc)
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return nil
	}
	return err
}

// Recent returns the newest alerts with circuit breaker protection.
func (r *AlertsRepositoryWithCircuitBreaker) Recent(ctx context.Context, metric string, limit int) ([]*AlertDocument, error) {
	var result []*AlertDocument
	err := r.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		var cbErr error
		result, cbErr = r.repo.Recent(ctx, metric, limit)
		return cbErr
	})
	return result, err
}

// CountBySeverity returns alert counts with circuit breaker protection.
func (r *AlertsRepositoryWithCircuitBreaker) CountBySeverity(ctx context.Context) (map[string]int64, error) {
	var result map[string]int64
	err := r.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		var cbErr error
		result, cbErr = r.repo.CountBySeverity(ctx)
		return cbErr
	})
	return result, err
}

// GetCircuitBreaker returns the underlying circuit breaker for monitoring.
func (r *AlertsRepositoryWithCircuitBreaker) GetCircuitBreaker() *circuitbreaker.CircuitBreaker {
	return r.circuitBreaker
}
