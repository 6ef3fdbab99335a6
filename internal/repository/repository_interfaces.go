package repository

import (
	"context"
)

// JobHistoryRepositoryInterface defines the job archive operations.
type JobHistoryRepositoryInterface interface {
	Insert(ctx context.Context, doc *JobDocument) error
	Query(ctx context.Context, q JobHistoryQuery) ([]*JobDocument, error)
	Count(ctx context.Context, q JobHistoryQuery) (int64, error)
}

// AlertsRepositoryInterface defines the alert archive operations.
type AlertsRepositoryInterface interface {
	Insert(ctx context.Context, doc *AlertDocument) error
	Recent(ctx context.Context, metric string, limit int) ([]*AlertDocument, error)
	CountBySeverity(ctx context.Context) (map[string]int64, error)
}
