package monitoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSink_Insights(t *testing.T) {
	s, clock := newTestSink(t, func(c *Config) {
		c.Thresholds = map[string]float64{"router.response_time_ms": 2000}
	})

	// Outside the window; must not count.
	s.Record("http.response_time_ms", 90000, map[string]string{"path": "/old"})
	clock.Advance(10 * time.Minute)

	s.Record("http.response_time_ms", 1500, map[string]string{"path": "/slow"})
	s.Record("http.response_time_ms", 1700, map[string]string{"path": "/slow"})
	s.Record("http.response_time_ms", 20, map[string]string{"path": "/fast"})
	s.Record("router.response_time_ms", 2500, map[string]string{"target": "api-1"})
	s.Record("router.error_rate", 0.2, map[string]string{"target": "api-2"})
	s.Record("router.error_rate", 0.01, map[string]string{"target": "api-1"})
	s.Record("cache.l1_hit", 1, nil)
	s.Record("cache.miss", 1, nil)
	s.Record("cache.miss", 1, nil)
	s.Record("cache.miss", 1, nil)

	report := s.Insights()

	require.Len(t, report.SlowEndpoints, 2)
	assert.Equal(t, "router.response_time_ms", report.SlowEndpoints[0].Metric)
	assert.Equal(t, "api-1", report.SlowEndpoints[0].Subject)
	assert.Equal(t, 2000.0, report.SlowEndpoints[0].Threshold)
	assert.Equal(t, "/slow", report.SlowEndpoints[1].Subject)
	assert.Equal(t, 1600.0, report.SlowEndpoints[1].Average)
	assert.Equal(t, 2, report.SlowEndpoints[1].Samples)

	require.Len(t, report.ElevatedErrorRates, 1)
	assert.Equal(t, "api-2", report.ElevatedErrorRates[0].Subject)

	assert.Equal(t, 4, report.CacheLookups)
	assert.Equal(t, 0.25, report.CacheHitRatio)
	assert.Equal(t, 1, report.RecentAlerts)
	assert.Len(t, report.Recommendations, 4)
	assert.Equal(t, "5m0s", report.Window)
}

func TestSink_Insights_Empty(t *testing.T) {
	s, _ := newTestSink(t, nil)

	report := s.Insights()

	assert.Empty(t, report.SlowEndpoints)
	assert.Empty(t, report.ElevatedErrorRates)
	assert.Zero(t, report.CacheLookups)
	assert.Empty(t, report.Recommendations)
}
