package monitoring

import (
	"sync"
	"testing"
	"time"

	"github.com/guttosm/resilience-layer/internal/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestSink(t *testing.T, mutate func(*Config)) (*Sink, *fakeClock) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.PruneInterval = 0
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewSink(cfg)
	require.NoError(t, err)
	clock := newFakeClock()
	s.now = clock.Now
	t.Cleanup(s.Stop)
	return s, clock
}

func TestSeverityFor(t *testing.T) {
	tests := []struct {
		value    float64
		expected Severity
	}{
		{1001, SeverityLow},
		{1200, SeverityLow},
		{1201, SeverityMedium},
		{1500, SeverityMedium},
		{1501, SeverityHigh},
		{2000, SeverityHigh},
		{2001, SeverityCritical},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, SeverityFor(tt.value, 1000), "value %v", tt.value)
	}
}

func TestNewSink_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero samples", func(c *Config) { c.MaxSamplesPerMetric = 0 }},
		{"zero alerts", func(c *Config) { c.MaxAlerts = 0 }},
		{"non-positive threshold", func(c *Config) { c.Thresholds = map[string]float64{"x": 0} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := NewSink(cfg)
			assert.ErrorIs(t, err, apperrors.ErrConfiguration)
		})
	}
}

func TestSink_Record_RaisesSingleLowAlert(t *testing.T) {
	s, _ := newTestSink(t, func(c *Config) {
		c.Thresholds = map[string]float64{"latency_ms": 1000}
	})

	var received []Alert
	s.OnAlert(func(a Alert) { received = append(received, a) })

	s.Record("latency_ms", 1200, nil)

	alerts := s.Alerts(0)
	require.Len(t, alerts, 1)
	assert.Equal(t, "latency_ms", alerts[0].Metric)
	assert.Equal(t, 1200.0, alerts[0].Value)
	assert.Equal(t, 1000.0, alerts[0].Threshold)
	assert.Equal(t, SeverityLow, alerts[0].Severity)
	assert.Equal(t, alerts, received)
}

func TestSink_Record_NoAlertAtOrBelowThreshold(t *testing.T) {
	s, _ := newTestSink(t, func(c *Config) {
		c.Thresholds = map[string]float64{"latency_ms": 1000}
	})

	s.Record("latency_ms", 1000, nil)
	s.Record("latency_ms", 10, nil)
	s.Record("other", 99999, nil)

	assert.Empty(t, s.Alerts(0))
}

func TestSink_Record_BoundsSeriesAndAlerts(t *testing.T) {
	s, clock := newTestSink(t, func(c *Config) {
		c.MaxSamplesPerMetric = 3
		c.MaxAlerts = 2
		c.Thresholds = map[string]float64{"m": 1}
	})

	for i := 1; i <= 5; i++ {
		s.Record("m", float64(i*10), nil)
		clock.Advance(time.Second)
	}

	sum := s.Summary(time.Hour)["m"]
	assert.Equal(t, 3, sum.Count)
	assert.Equal(t, 30.0, sum.Min)
	assert.Equal(t, 50.0, sum.Max)

	alerts := s.Alerts(0)
	require.Len(t, alerts, 2)
	assert.Equal(t, 40.0, alerts[0].Value)
	assert.Equal(t, 50.0, alerts[1].Value)

	latest := s.Alerts(1)
	require.Len(t, latest, 1)
	assert.Equal(t, 50.0, latest[0].Value)
}

func TestSink_Summary(t *testing.T) {
	s, clock := newTestSink(t, nil)

	s.Record("latency_ms", 500, nil)
	clock.Advance(10 * time.Minute)
	s.Record("latency_ms", 100, nil)
	s.Record("latency_ms", 300, map[string]string{"path": "/a"})
	s.Record("cache.miss", 1, nil)

	summary := s.Summary(time.Minute)

	require.Contains(t, summary, "latency_ms")
	assert.Equal(t, Summary{Count: 2, Avg: 200, Min: 100, Max: 300, Latest: 300}, summary["latency_ms"])
	assert.Equal(t, 1, summary["cache.miss"].Count)

	clock.Advance(2 * time.Minute)
	assert.Empty(t, s.Summary(time.Minute))
}

func TestSink_Prune(t *testing.T) {
	s, clock := newTestSink(t, func(c *Config) {
		c.Retention = time.Minute
		c.Thresholds = map[string]float64{"m": 1}
	})

	s.Record("m", 5, nil)
	s.Record("n", 1, nil)
	clock.Advance(2 * time.Minute)
	s.Record("m", 6, nil)

	s.prune()

	summary := s.Summary(time.Hour)
	assert.NotContains(t, summary, "n")
	assert.Equal(t, 1, summary["m"].Count)
	assert.Equal(t, 6.0, summary["m"].Latest)
	require.Len(t, s.Alerts(0), 1)
}

func TestSink_RecordCopiesTags(t *testing.T) {
	s, _ := newTestSink(t, func(c *Config) {
		c.Thresholds = map[string]float64{"m": 1}
	})

	tags := map[string]string{"target": "a"}
	s.Record("m", 2, tags)
	tags["target"] = "mutated"

	assert.Equal(t, "a", s.Alerts(0)[0].Tags["target"])
}

func TestSink_ConcurrentRecord(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PruneInterval = 10 * time.Millisecond
	s, err := NewSink(cfg)
	require.NoError(t, err)
	defer s.Stop()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.Record("concurrent", float64(i), nil)
				_ = s.Summary(time.Minute)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 800, s.Summary(time.Hour)["concurrent"].Count)
}

func TestSink_StopIsIdempotent(t *testing.T) {
	s, err := NewSink(DefaultConfig())
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		s.Stop()
		s.Stop()
	})
}
