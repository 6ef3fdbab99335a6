package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/guttosm/resilience-layer/internal/metrics"
	"github.com/guttosm/resilience-layer/internal/middleware"
	"github.com/guttosm/resilience-layer/internal/monitoring"
)

// RouterConfig holds router configuration options.
type RouterConfig struct {
	CORSOrigins []string
	// RequestTimeout bounds every /api request. Zero disables it.
	RequestTimeout time.Duration
	// Recorder receives http.response_time_ms samples.
	Recorder monitoring.Recorder
}

// DefaultRouterConfig returns the default router configuration.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		RequestTimeout: 30 * time.Second,
		Recorder:       monitoring.Nop,
	}
}

// NewRouter creates and configures the gin engine.
func NewRouter(api *APIHandler, mon *MonitoringHandler, health *HealthHandler, cfg RouterConfig) *gin.Engine {
	router := gin.New()

	router.Use(
		middleware.CORS(cfg.CORSOrigins),
		middleware.RequestID(),
		middleware.Recovery(),
		metrics.PrometheusMiddleware(),
		middleware.Compression(),
		middleware.RequestLogger(cfg.Recorder),
		middleware.ErrorHandler(),
	)

	health.Register(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	group := router.Group("/api", middleware.Timeout(cfg.RequestTimeout))
	registerMonitoringRoutes(group, mon)
	registerAPIRoutes(group, api)

	return router
}

func registerMonitoringRoutes(rg *gin.RouterGroup, h *MonitoringHandler) {
	if h == nil {
		return
	}
	m := rg.Group("/monitoring")
	m.GET("/summary", h.Summary)
	m.GET("/insights", h.Insights)
	m.GET("/alerts", h.Alerts)
	m.GET("/alerts/history", h.AlertHistory)
}

func registerAPIRoutes(rg *gin.RouterGroup, h *APIHandler) {
	if h == nil {
		return
	}
	rg.GET("/router/stats", h.RouterStats)

	rg.GET("/queues", h.ListQueues)
	rg.GET("/queues/:name/stats", h.QueueStats)
	rg.GET("/queues/:name/history", h.QueueHistory)

	rg.GET("/cache/stats", h.CacheStats)
	rg.DELETE("/cache", h.InvalidateCache)

	rg.GET("/lookup/*path", h.Lookup)
}
