package metrics

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(PrometheusMiddleware())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	router.GET("/error", func(c *gin.Context) {
		c.String(http.StatusInternalServerError, "error")
	})

	tests := []struct {
		name           string
		path           string
		expectedStatus int
	}{
		{
			name:           "records metrics for successful request",
			path:           "/test",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "records metrics for error request",
			path:           "/error",
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(HTTPRequestTotal.WithLabelValues(http.MethodGet, tt.path, strconv.Itoa(tt.expectedStatus)))

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			after := testutil.ToFloat64(HTTPRequestTotal.WithLabelValues(http.MethodGet, tt.path, strconv.Itoa(tt.expectedStatus)))
			assert.Equal(t, before+1, after)
		})
	}
}

func TestRecordCacheOperation(t *testing.T) {
	before := testutil.ToFloat64(CacheOperationsTotal.WithLabelValues("l1", "get", "hit"))
	RecordCacheOperation("l1", "get", "hit")
	assert.Equal(t, before+1, testutil.ToFloat64(CacheOperationsTotal.WithLabelValues("l1", "get", "hit")))
}

func TestUpdateCacheMetrics(t *testing.T) {
	UpdateCacheMetrics("sessions", 10, 100)
	UpdateCacheMetrics("lookup", 3, 50)

	assert.Equal(t, 10.0, testutil.ToFloat64(CacheSize.WithLabelValues("sessions")))
	assert.Equal(t, 100.0, testutil.ToFloat64(CacheCapacity.WithLabelValues("sessions")))
	assert.Equal(t, 3.0, testutil.ToFloat64(CacheSize.WithLabelValues("lookup")))
	assert.Equal(t, 50.0, testutil.ToFloat64(CacheCapacity.WithLabelValues("lookup")))
}

func TestRecordTargetOutcome(t *testing.T) {
	before := testutil.ToFloat64(TargetOutcomesTotal.WithLabelValues("metrics-test", "failure"))
	RecordTargetOutcome("metrics-test", 120*time.Millisecond, false)
	SetTargetStatus("metrics-test", 2)

	assert.Equal(t, before+1, testutil.ToFloat64(TargetOutcomesTotal.WithLabelValues("metrics-test", "failure")))
	assert.Equal(t, 2.0, testutil.ToFloat64(TargetStatus.WithLabelValues("metrics-test")))
}

func TestQueueMetrics(t *testing.T) {
	RecordJobEvent("metrics-test", "high", "completed")
	UpdateQueueDepth("metrics-test", 3, 1)

	assert.Equal(t, 3.0, testutil.ToFloat64(QueueDepth.WithLabelValues("metrics-test", "pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(QueueDepth.WithLabelValues("metrics-test", "active")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(QueueJobsTotal.WithLabelValues("metrics-test", "high", "completed")), 1.0)
}

func TestSinkMetrics(t *testing.T) {
	RecordSinkSample("latency_ms", 1200)
	RecordSinkAlert("latency_ms", "low")

	assert.Equal(t, 1200.0, testutil.ToFloat64(SinkSampleValue.WithLabelValues("latency_ms")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(SinkAlertsTotal.WithLabelValues("latency_ms", "low")), 1.0)
}
