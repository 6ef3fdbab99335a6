// Code generated manually. DO NOT EDIT.

package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/guttosm/resilience-layer/internal/jobqueue"
	"github.com/guttosm/resilience-layer/internal/repository"
)

type MockJobEnqueuer struct {
	mock.Mock
}

func (m *MockJobEnqueuer) AddJob(queueName string, payload any, priority jobqueue.Priority, delay time.Duration) (string, error) {
	args := m.Called(queueName, payload, priority, delay)
	return args.String(0), args.Error(1)
}

type MockAlertsRepository struct {
	mock.Mock
}

func (m *MockAlertsRepository) Insert(ctx context.Context, doc *repository.AlertDocument) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockAlertsRepository) Recent(ctx context.Context, metric string, limit int) ([]*repository.AlertDocument, error) {
	args := m.Called(ctx, metric, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.AlertDocument), args.Error(1)
}

func (m *MockAlertsRepository) CountBySeverity(ctx context.Context) (map[string]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

type MockJobHistoryRepository struct {
	mock.Mock
}

func (m *MockJobHistoryRepository) Insert(ctx context.Context, doc *repository.JobDocument) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockJobHistoryRepository) Query(ctx context.Context, q repository.JobHistoryQuery) ([]*repository.JobDocument, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.JobDocument), args.Error(1)
}

func (m *MockJobHistoryRepository) Count(ctx context.Context, q repository.JobHistoryQuery) (int64, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(int64), args.Error(1)
}
