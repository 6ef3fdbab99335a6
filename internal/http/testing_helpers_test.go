package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/guttosm/resilience-layer/internal/balancer"
	"github.com/guttosm/resilience-layer/internal/cache"
	"github.com/guttosm/resilience-layer/internal/jobqueue"
	"github.com/guttosm/resilience-layer/internal/monitoring"
	"github.com/guttosm/resilience-layer/internal/repository"
	"github.com/guttosm/resilience-layer/internal/service"
)

type testStack struct {
	engine      *gin.Engine
	sink        *monitoring.Sink
	router      *balancer.Router
	manager     *jobqueue.Manager
	cache       *cache.Tiered
	backendHits *atomic.Int32
}

type stackOptions struct {
	alerts  repository.AlertsRepositoryInterface
	history repository.JobHistoryRepositoryInterface
}

// newTestStack wires real components behind the gin engine, with one
// httptest backend that echoes the path and 404s on /missing.
func newTestStack(t *testing.T, opts stackOptions) *testStack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hits := &atomic.Int32{}
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("value:" + r.URL.Path))
	}))
	t.Cleanup(backend.Close)

	sinkCfg := monitoring.DefaultConfig()
	sinkCfg.PruneInterval = 0
	sinkCfg.Thresholds = map[string]float64{"queue.wait_ms": 1000}
	sink, err := monitoring.NewSink(sinkCfg)
	require.NoError(t, err)
	t.Cleanup(sink.Stop)

	routerCfg := balancer.DefaultConfig()
	routerCfg.ProbeInterval = 0
	router, err := balancer.New([]balancer.TargetConfig{{ID: "api-1", Address: backend.URL}}, routerCfg,
		balancer.WithRecorder(sink))
	require.NoError(t, err)

	cacheCfg := cache.DefaultConfig()
	cacheCfg.CleanupInterval = 0
	tiered, err := cache.NewTiered(nil, cacheCfg, cache.WithRecorder(sink))
	require.NoError(t, err)
	t.Cleanup(tiered.Stop)

	manager, err := jobqueue.NewManager(jobqueue.DefaultConfig(), jobqueue.WithRecorder(sink))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = manager.Stop(context.Background())
	})
	require.NoError(t, manager.CreateQueue(service.AlertsQueue, service.NewAlertArchiveHandler(nil)))

	lookup := service.NewLookupService(tiered, router, service.NewHTTPFetcher(backend.Client()),
		service.WithLookupRecorder(sink))

	var apiOpts []APIHandlerOption
	if opts.history != nil {
		apiOpts = append(apiOpts, WithJobHistory(opts.history))
	}
	api := NewAPIHandler(router, manager, tiered, lookup, apiOpts...)
	mon := NewMonitoringHandler(sink, opts.alerts)

	health := NewHealthHandler()
	health.RegisterChecker("router", HealthCheckerFunc(func(context.Context) error {
		if router.Stats().Healthy == 0 {
			return balancer.ErrNoHealthyTarget
		}
		return nil
	}))
	health.RegisterCircuitBreaker("cache_l2", tiered.Breaker())

	cfg := DefaultRouterConfig()
	cfg.Recorder = sink

	return &testStack{
		engine:      NewRouter(api, mon, health, cfg),
		sink:        sink,
		router:      router,
		manager:     manager,
		cache:       tiered,
		backendHits: hits,
	}
}

func (s *testStack) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

// decodeData unmarshals the data field of a success response into dst.
func decodeData(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	var envelope struct {
		Data      json.RawMessage `json:"data"`
		RequestID string          `json:"request_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotEmpty(t, envelope.RequestID)
	require.NoError(t, json.Unmarshal(envelope.Data, dst))
}
