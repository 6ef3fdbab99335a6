// Package monitoring provides the in-process metrics sink shared by the cache,
// balancer and job queue. It keeps bounded per-metric sample series, checks
// static alert thresholds and answers windowed summaries.
package monitoring

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/guttosm/resilience-layer/internal/apperrors"
	"github.com/guttosm/resilience-layer/internal/logger"
	"github.com/guttosm/resilience-layer/internal/metrics"
)

// Recorder is the write side of the sink used by other components.
type Recorder interface {
	Record(name string, value float64, tags map[string]string)
}

type nopRecorder struct{}

func (nopRecorder) Record(string, float64, map[string]string) {}

// Nop discards every sample.
var Nop Recorder = nopRecorder{}

// Severity classifies how far a value breached its threshold.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityFor derives a severity from the value/threshold ratio.
func SeverityFor(value, threshold float64) Severity {
	ratio := value / threshold
	switch {
	case ratio > 2.0:
		return SeverityCritical
	case ratio > 1.5:
		return SeverityHigh
	case ratio > 1.2:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Sample is a single recorded value.
type Sample struct {
	Name      string            `json:"name"`
	Value     float64           `json:"value"`
	Timestamp time.Time         `json:"timestamp"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// Alert is raised when a sample exceeds its static threshold.
type Alert struct {
	Metric    string            `json:"metric"`
	Value     float64           `json:"value"`
	Threshold float64           `json:"threshold"`
	Severity  Severity          `json:"severity"`
	Timestamp time.Time         `json:"timestamp"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// Summary aggregates the samples of one metric inside a window.
type Summary struct {
	Count  int     `json:"count"`
	Avg    float64 `json:"avg"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Latest float64 `json:"latest"`
}

// AlertHandler receives alerts after they are appended to the log.
type AlertHandler func(Alert)

// Config holds sink configuration.
type Config struct {
	// Retention is the maximum age of a sample before pruning.
	Retention time.Duration
	// MaxSamplesPerMetric bounds each metric series.
	MaxSamplesPerMetric int
	// MaxAlerts bounds the alert log.
	MaxAlerts int
	// PruneInterval is how often aged samples are dropped. Zero disables the loop.
	PruneInterval time.Duration
	// Thresholds maps metric names to static alert thresholds.
	Thresholds map[string]float64
}

// DefaultConfig returns a default sink configuration.
func DefaultConfig() Config {
	return Config{
		Retention:           time.Hour,
		MaxSamplesPerMetric: 1000,
		MaxAlerts:           1000,
		PruneInterval:       time.Minute,
		Thresholds:          map[string]float64{},
	}
}

// Sink stores samples and alerts in memory.
type Sink struct {
	cfg Config

	mu       sync.RWMutex
	series   map[string][]Sample
	alerts   []Alert
	handlers []AlertHandler

	now    func() time.Time
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewSink creates a sink and starts its pruning loop.
func NewSink(cfg Config) (*Sink, error) {
	if cfg.MaxSamplesPerMetric <= 0 {
		return nil, apperrors.NewConfigurationError("metrics.max_samples", "must be positive")
	}
	if cfg.MaxAlerts <= 0 {
		return nil, apperrors.NewConfigurationError("metrics.max_alerts", "must be positive")
	}
	thresholds := make(map[string]float64, len(cfg.Thresholds))
	for name, v := range cfg.Thresholds {
		if v <= 0 {
			return nil, apperrors.NewConfigurationError("metrics.alert_thresholds."+name, "must be positive")
		}
		thresholds[name] = v
	}
	cfg.Thresholds = thresholds

	s := &Sink{
		cfg:    cfg,
		series: make(map[string][]Sample),
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
	if cfg.PruneInterval > 0 && cfg.Retention > 0 {
		s.wg.Add(1)
		go s.pruneLoop()
	}
	return s, nil
}

// OnAlert registers a handler invoked for every new alert.
func (s *Sink) OnAlert(h AlertHandler) {
	s.mu.Lock()
	s.handlers = append(s.handlers, h)
	s.mu.Unlock()
}

// Record appends a sample and raises an alert when its threshold is breached.
func (s *Sink) Record(name string, value float64, tags map[string]string) {
	sample := Sample{
		Name:  name,
		Value: value,
		Tags:  copyTags(tags),
	}

	var (
		alert    Alert
		breached bool
		handlers []AlertHandler
	)

	s.mu.Lock()
	// Stamped under the lock so every series stays ordered by time.
	sample.Timestamp = s.now()
	series := s.series[name]
	if len(series) >= s.cfg.MaxSamplesPerMetric {
		series = series[len(series)-s.cfg.MaxSamplesPerMetric+1:]
	}
	s.series[name] = append(series, sample)

	if threshold, ok := s.cfg.Thresholds[name]; ok && value > threshold {
		breached = true
		alert = Alert{
			Metric:    name,
			Value:     value,
			Threshold: threshold,
			Severity:  SeverityFor(value, threshold),
			Timestamp: sample.Timestamp,
			Tags:      sample.Tags,
		}
		if len(s.alerts) >= s.cfg.MaxAlerts {
			s.alerts = s.alerts[len(s.alerts)-s.cfg.MaxAlerts+1:]
		}
		s.alerts = append(s.alerts, alert)
		handlers = s.handlers
	}
	s.mu.Unlock()

	metrics.RecordSinkSample(name, value)
	if !breached {
		return
	}

	metrics.RecordSinkAlert(name, string(alert.Severity))
	log := logger.Component("monitoring")
	log.Warn().
		Str("metric", name).
		Float64("value", value).
		Float64("threshold", alert.Threshold).
		Str("severity", string(alert.Severity)).
		Msg("Threshold breached")

	for _, h := range handlers {
		h(alert)
	}
}

// Summary aggregates every metric with samples inside the window.
func (s *Sink) Summary(window time.Duration) map[string]Summary {
	cutoff := s.now().Add(-window)

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]Summary, len(s.series))
	for name, series := range s.series {
		if sum, ok := summarize(series, cutoff); ok {
			result[name] = sum
		}
	}
	return result
}

// Alerts returns up to limit of the most recent alerts, oldest first.
// A non-positive limit returns the whole log.
func (s *Sink) Alerts(limit int) []Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if limit > 0 && len(s.alerts) > limit {
		start = len(s.alerts) - limit
	}
	out := make([]Alert, len(s.alerts)-start)
	copy(out, s.alerts[start:])
	return out
}

// Stop ends the pruning loop. It is safe to call more than once.
func (s *Sink) Stop() {
	s.once.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}

func (s *Sink) pruneLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.prune()
		case <-s.stopCh:
			return
		}
	}
}

// prune drops samples and alerts older than the retention window.
func (s *Sink) prune() {
	cutoff := s.now().Add(-s.cfg.Retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	for name, series := range s.series {
		idx := sort.Search(len(series), func(i int) bool {
			return !series[i].Timestamp.Before(cutoff)
		})
		switch {
		case idx == len(series):
			delete(s.series, name)
		case idx > 0:
			s.series[name] = append([]Sample(nil), series[idx:]...)
		}
	}

	idx := sort.Search(len(s.alerts), func(i int) bool {
		return !s.alerts[i].Timestamp.Before(cutoff)
	})
	if idx > 0 {
		s.alerts = append([]Alert(nil), s.alerts[idx:]...)
	}
}

// summarize assumes samples are ordered by timestamp.
func summarize(series []Sample, cutoff time.Time) (Summary, bool) {
	idx := sort.Search(len(series), func(i int) bool {
		return !series[i].Timestamp.Before(cutoff)
	})
	window := series[idx:]
	if len(window) == 0 {
		return Summary{}, false
	}

	sum := Summary{
		Count:  len(window),
		Min:    math.Inf(1),
		Max:    math.Inf(-1),
		Latest: window[len(window)-1].Value,
	}
	var total float64
	for _, smp := range window {
		total += smp.Value
		sum.Min = math.Min(sum.Min, smp.Value)
		sum.Max = math.Max(sum.Max, smp.Value)
	}
	sum.Avg = total / float64(len(window))
	return sum, true
}

func copyTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}
