package monitoring

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	insightsWindow         = 5 * time.Minute
	defaultSlowThresholdMs = 1000.0
	elevatedErrorRate      = 0.05
	lowCacheHitRatio       = 0.5
)

// Finding describes one metric (optionally narrowed to a subject such as a
// path, target or queue) that stands out in the insights window.
type Finding struct {
	Metric    string  `json:"metric"`
	Subject   string  `json:"subject,omitempty"`
	Average   float64 `json:"average"`
	Threshold float64 `json:"threshold"`
	Samples   int     `json:"samples"`
}

// Insights is a read-only analytical report derived from recent samples.
type Insights struct {
	GeneratedAt        time.Time `json:"generated_at"`
	Window             string    `json:"window"`
	SlowEndpoints      []Finding `json:"slow_endpoints"`
	ElevatedErrorRates []Finding `json:"elevated_error_rates"`
	CacheLookups       int       `json:"cache_lookups"`
	CacheHitRatio      float64   `json:"cache_hit_ratio"`
	RecentAlerts       int       `json:"recent_alerts"`
	Recommendations    []string  `json:"recommendations"`
}

type bucket struct {
	total float64
	count int
}

// Insights reports slow latency metrics, elevated error rates and the cache
// hit ratio over the last five minutes.
func (s *Sink) Insights() Insights {
	now := s.now()
	cutoff := now.Add(-insightsWindow)

	report := Insights{
		GeneratedAt:        now,
		Window:             insightsWindow.String(),
		SlowEndpoints:      []Finding{},
		ElevatedErrorRates: []Finding{},
		Recommendations:    []string{},
	}

	s.mu.RLock()
	latency := make(map[[2]string]*bucket)
	errorRates := make(map[[2]string]*bucket)
	cacheCounts := make(map[string]int)

	for name, series := range s.series {
		isLatency := strings.HasSuffix(name, "_ms")
		isErrorRate := strings.Contains(name, "error_rate")
		isCache := name == "cache.l1_hit" || name == "cache.l2_hit" || name == "cache.miss"
		if !isLatency && !isErrorRate && !isCache {
			continue
		}
		for i := len(series) - 1; i >= 0 && !series[i].Timestamp.Before(cutoff); i-- {
			smp := series[i]
			key := [2]string{name, subjectOf(smp.Tags)}
			switch {
			case isCache:
				cacheCounts[name]++
			case isLatency:
				add(latency, key, smp.Value)
			case isErrorRate:
				add(errorRates, key, smp.Value)
			}
		}
	}

	thresholds := s.cfg.Thresholds
	for _, a := range s.alerts {
		if !a.Timestamp.Before(cutoff) {
			report.RecentAlerts++
		}
	}
	s.mu.RUnlock()

	for key, b := range latency {
		threshold, ok := thresholds[key[0]]
		if !ok {
			threshold = defaultSlowThresholdMs
		}
		if avg := b.total / float64(b.count); avg > threshold {
			report.SlowEndpoints = append(report.SlowEndpoints, Finding{
				Metric: key[0], Subject: key[1], Average: avg, Threshold: threshold, Samples: b.count,
			})
		}
	}
	for key, b := range errorRates {
		if avg := b.total / float64(b.count); avg > elevatedErrorRate {
			report.ElevatedErrorRates = append(report.ElevatedErrorRates, Finding{
				Metric: key[0], Subject: key[1], Average: avg, Threshold: elevatedErrorRate, Samples: b.count,
			})
		}
	}
	sortFindings(report.SlowEndpoints)
	sortFindings(report.ElevatedErrorRates)

	hits := cacheCounts["cache.l1_hit"] + cacheCounts["cache.l2_hit"]
	report.CacheLookups = hits + cacheCounts["cache.miss"]
	if report.CacheLookups > 0 {
		report.CacheHitRatio = float64(hits) / float64(report.CacheLookups)
	}

	for _, f := range report.SlowEndpoints {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("%s%s averages %.0fms (threshold %.0fms); consider caching or scaling", f.Metric, subjectSuffix(f.Subject), f.Average, f.Threshold))
	}
	for _, f := range report.ElevatedErrorRates {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("%s%s error rate is %.1f%%; investigate backend failures", f.Metric, subjectSuffix(f.Subject), f.Average*100))
	}
	if report.CacheLookups > 0 && report.CacheHitRatio < lowCacheHitRatio {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("cache hit ratio is %.0f%%; review TTLs and L1 capacity", report.CacheHitRatio*100))
	}
	return report
}

func add(m map[[2]string]*bucket, key [2]string, v float64) {
	b, ok := m[key]
	if !ok {
		b = &bucket{}
		m[key] = b
	}
	b.total += v
	b.count++
}

// subjectOf picks the tag that best identifies what a sample is about.
func subjectOf(tags map[string]string) string {
	for _, k := range []string{"path", "target", "queue"} {
		if v, ok := tags[k]; ok {
			return v
		}
	}
	return ""
}

func subjectSuffix(subject string) string {
	if subject == "" {
		return ""
	}
	return " (" + subject + ")"
}

func sortFindings(f []Finding) {
	sort.Slice(f, func(i, j int) bool {
		return f[i].Average > f[j].Average
	})
}
