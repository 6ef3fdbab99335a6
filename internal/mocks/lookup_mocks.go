// Code generated manually. DO NOT EDIT.

package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/guttosm/resilience-layer/internal/balancer"
	"github.com/guttosm/resilience-layer/internal/cache"
)

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string) cache.Result {
	args := m.Called(ctx, key)
	return args.Get(0).(cache.Result)
}

func (m *MockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	m.Called(ctx, key, value, ttl)
}

func (m *MockCache) Invalidate(ctx context.Context, prefix string) {
	m.Called(ctx, prefix)
}

type MockTargetSelector struct {
	mock.Mock
}

func (m *MockTargetSelector) Select(excludeID string) (balancer.TargetRef, error) {
	args := m.Called(excludeID)
	return args.Get(0).(balancer.TargetRef), args.Error(1)
}

func (m *MockTargetSelector) RecordOutcome(id string, responseTimeMs int64, success bool) error {
	args := m.Called(id, responseTimeMs, success)
	return args.Error(0)
}

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, target balancer.TargetRef, path string) ([]byte, error) {
	args := m.Called(ctx, target, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
