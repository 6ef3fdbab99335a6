// Package metrics provides Prometheus metrics collection for the resilience layer.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestDuration tracks HTTP request duration by method, path, and status code.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status_code"},
	)

	// HTTPRequestTotal tracks total HTTP requests by method, path, and status code.
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	// CacheOperationsTotal tracks cache operations by tier.
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_operations_total",
			Help: "Total number of cache operations",
		},
		[]string{"tier", "operation", "result"},
	)

	// CacheSize tracks current L1 size per cache instance.
	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_l1_size",
			Help: "Current number of entries in the L1 cache",
		},
		[]string{"cache"},
	)

	// CacheCapacity tracks L1 capacity per cache instance.
	CacheCapacity = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_l1_capacity",
			Help: "L1 cache capacity",
		},
		[]string{"cache"},
	)

	// TargetStatus exposes the current health status per target (0 healthy, 1 degraded, 2 unhealthy).
	TargetStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "router_target_status",
			Help: "Current health status of each backend target",
		},
		[]string{"target"},
	)

	// TargetOutcomesTotal counts recorded outcomes per target.
	TargetOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_target_outcomes_total",
			Help: "Total number of outcomes recorded per backend target",
		},
		[]string{"target", "result"},
	)

	// TargetResponseTime tracks response time per target.
	TargetResponseTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "router_target_response_seconds",
			Help:    "Backend target response time in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"target"},
	)

	// QueueJobsTotal counts job lifecycle events per queue and priority.
	QueueJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_jobs_total",
			Help: "Total number of job lifecycle events",
		},
		[]string{"queue", "priority", "event"},
	)

	// QueueDepth tracks pending and active jobs per queue.
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Number of jobs per queue and state",
		},
		[]string{"queue", "state"},
	)

	// SinkSampleValue mirrors the latest value recorded into the metrics sink.
	SinkSampleValue = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sink_sample_value",
			Help: "Latest value recorded per sink metric",
		},
		[]string{"metric"},
	)

	// SinkAlertsTotal counts alerts raised by the metrics sink.
	SinkAlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sink_alerts_total",
			Help: "Total number of threshold alerts",
		},
		[]string{"metric", "severity"},
	)
)

// PrometheusMiddleware returns a Gin middleware that collects HTTP metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		duration := time.Since(start).Seconds()
		statusCode := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method

		HTTPRequestDuration.WithLabelValues(method, path, statusCode).Observe(duration)
		HTTPRequestTotal.WithLabelValues(method, path, statusCode).Inc()
	}
}

// RecordCacheOperation records metrics for a cache operation.
func RecordCacheOperation(tier, operation, result string) {
	CacheOperationsTotal.WithLabelValues(tier, operation, result).Inc()
}

// UpdateCacheMetrics updates the size and capacity gauges of the named cache.
func UpdateCacheMetrics(cache string, size, capacity int) {
	CacheSize.WithLabelValues(cache).Set(float64(size))
	CacheCapacity.WithLabelValues(cache).Set(float64(capacity))
}

// RecordTargetOutcome records a single backend outcome.
func RecordTargetOutcome(target string, responseTime time.Duration, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	TargetOutcomesTotal.WithLabelValues(target, result).Inc()
	TargetResponseTime.WithLabelValues(target).Observe(responseTime.Seconds())
}

// SetTargetStatus publishes the numeric status of a target.
func SetTargetStatus(target string, status int) {
	TargetStatus.WithLabelValues(target).Set(float64(status))
}

// RecordJobEvent records a job lifecycle event.
func RecordJobEvent(queue, priority, event string) {
	QueueJobsTotal.WithLabelValues(queue, priority, event).Inc()
}

// UpdateQueueDepth publishes pending and active counts for a queue.
func UpdateQueueDepth(queue string, pending, active int) {
	QueueDepth.WithLabelValues(queue, "pending").Set(float64(pending))
	QueueDepth.WithLabelValues(queue, "active").Set(float64(active))
}

// RecordSinkSample mirrors a sink sample.
func RecordSinkSample(metric string, value float64) {
	SinkSampleValue.WithLabelValues(metric).Set(value)
}

// RecordSinkAlert counts a sink alert.
func RecordSinkAlert(metric, severity string) {
	SinkAlertsTotal.WithLabelValues(metric, severity).Inc()
}
