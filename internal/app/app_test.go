//go:build !integration

package app

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guttosm/resilience-layer/config"
	"github.com/guttosm/resilience-layer/internal/apperrors"
	"github.com/guttosm/resilience-layer/internal/jobqueue"
	"github.com/guttosm/resilience-layer/internal/service"
)

func TestInitializeApp_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.L1Capacity = 0

	a, err := InitializeApp(context.Background(), cfg)

	require.Error(t, err)
	assert.Nil(t, a)
	var cfgErr *apperrors.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestInitializeApp_L1Only(t *testing.T) {
	a := startApp(t, testConfig(t))

	assert.Nil(t, a.Database)
	assert.ElementsMatch(t, []string{service.AlertsQueue}, a.Services.Queues.Queues())

	w := serve(a, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(a, http.MethodGet, "/api/lookup/users/1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(service.SourceBackend), w.Header().Get("X-Cache-Source"))
	assert.Contains(t, w.Body.String(), "value:/users/1")

	w = serve(a, http.MethodGet, "/api/lookup/users/1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(service.SourceL1), w.Header().Get("X-Cache-Source"))

	w = serve(a, http.MethodGet, "/api/monitoring/summary")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "router.response_time_ms")

	w = serve(a, http.MethodGet, "/api/monitoring/alerts/history")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInitializeApp_RequiresTargets(t *testing.T) {
	cfg := testConfig(t)
	cfg.Router.Targets = nil

	a, err := InitializeApp(context.Background(), cfg)

	require.Error(t, err)
	assert.Nil(t, a)
	var cfgErr *apperrors.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestInitializeApp_UnhealthyTargetIsNotReady(t *testing.T) {
	cfg := testConfig(t)
	cfg.Router.WindowSize = 1
	a := startApp(t, cfg)

	require.NoError(t, a.Services.Router.RecordOutcome("api-1", 10, false))

	w := serve(a, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = serve(a, http.MethodGet, "/api/lookup/users/1")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestInitializeApp_RedisL2(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Cache.L2Backend = "redis"
	cfg.Redis.URL = mr.Addr()
	a := startApp(t, cfg)

	w := serve(a, http.MethodGet, "/api/lookup/orders/7")
	require.Equal(t, http.StatusOK, w.Code)

	assert.True(t, mr.Exists(cfg.Cache.Namespace+"lookup:/orders/7"))
	stored, err := mr.Get(cfg.Cache.Namespace + "lookup:/orders/7")
	require.NoError(t, err)
	assert.Equal(t, "value:/orders/7", stored)

	w = serve(a, http.MethodDelete, "/api/cache?prefix=lookup:/orders/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, mr.Exists(cfg.Cache.Namespace+"lookup:/orders/7"))
}

func TestInitializeApp_UnreachableRedisStillServes(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Cache.L2Backend = "redis"
	cfg.Redis.URL = mr.Addr()
	cfg.CircuitBreaker.FailureThreshold = 1
	mr.Close()

	a := startApp(t, cfg)

	w := serve(a, http.MethodGet, "/api/lookup/items/1")
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(a, http.MethodGet, "/api/lookup/items/1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(service.SourceL1), w.Header().Get("X-Cache-Source"))

	w = serve(a, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestInitializeApp_QueueStats(t *testing.T) {
	a := startApp(t, testConfig(t))

	w := serve(a, http.MethodGet, "/api/queues/"+service.AlertsQueue+"/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data jobqueue.Stats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Zero(t, body.Data.Pending)

	w = serve(a, http.MethodGet, "/api/queues/unknown/stats")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQueuePolicies_OverlaysConfiguredClasses(t *testing.T) {
	cfg := config.Default().Queue
	cfg.Classes["low"] = config.ClassPolicyConfig{Concurrency: 7, MaxAttempts: 9, Backoff: config.BackoffConfig{Initial: 1, Max: 2, Multiplier: 3}}

	policies := queuePolicies(cfg)

	low := policies[jobqueue.PriorityLow]
	assert.Equal(t, 7, low.Concurrency)
	assert.Equal(t, 9, low.MaxAttempts)
	assert.Len(t, policies, 4)
}
