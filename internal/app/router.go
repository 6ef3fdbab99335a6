package app

import (
	"context"

	"github.com/guttosm/resilience-layer/config"
	"github.com/guttosm/resilience-layer/internal/balancer"
	"github.com/guttosm/resilience-layer/internal/http"
	"github.com/guttosm/resilience-layer/internal/repository"
)

// RouterComponents holds router-related components.
type RouterComponents struct {
	APIHandler        *http.APIHandler
	MonitoringHandler *http.MonitoringHandler
	HealthHandler     *http.HealthHandler
	Config            http.RouterConfig
}

// InitializeRouter initializes HTTP handlers and router configuration.
func InitializeRouter(sc *ServiceComponents, db *DatabaseComponents, cfg config.Config) *RouterComponents {
	var (
		apiOpts      []http.APIHandlerOption
		alertArchive repository.AlertsRepositoryInterface
	)
	if db != nil {
		apiOpts = append(apiOpts, http.WithJobHistory(db.JobHistory))
		alertArchive = db.Alerts
	}

	healthHandler := http.NewHealthHandler()
	healthHandler.RegisterChecker("router", http.HealthCheckerFunc(func(context.Context) error {
		if sc.Router.Stats().Healthy == 0 {
			return balancer.ErrNoHealthyTarget
		}
		return nil
	}))
	// The archives are optional, so MongoDB does not gate readiness unless it
	// backs the L2 cache, in which case the cache breaker covers it.
	healthHandler.RegisterCircuitBreaker("cache_l2", sc.Cache.Breaker())

	return &RouterComponents{
		APIHandler:        http.NewAPIHandler(sc.Router, sc.Queues, sc.Cache, sc.Lookup, apiOpts...),
		MonitoringHandler: http.NewMonitoringHandler(sc.Sink, alertArchive),
		HealthHandler:     healthHandler,
		Config: http.RouterConfig{
			CORSOrigins:    cfg.Server.CORSOrigins,
			RequestTimeout: cfg.Server.RequestTimeout,
			Recorder:       sc.Sink,
		},
	}
}
