package balancer

import (
	"sync"
	"time"
)

// TargetSnapshot is a copy of one target's state.
type TargetSnapshot struct {
	ID                 string    `json:"id"`
	Address            string    `json:"address"`
	Status             Status    `json:"status"`
	RequestCount       int       `json:"request_count"`
	ErrorCount         int       `json:"error_count"`
	ErrorRate          float64   `json:"error_rate"`
	LastResponseTimeMs int64     `json:"last_response_time_ms"`
	LastCheckedAt      time.Time `json:"last_checked_at"`
}

// Stats aggregates target snapshots by status.
type Stats struct {
	Targets   []TargetSnapshot `json:"targets"`
	Healthy   int              `json:"healthy"`
	Degraded  int              `json:"degraded"`
	Unhealthy int              `json:"unhealthy"`
	Total     int              `json:"total"`
}

// target holds one backend's rolling window. Its mutex is independent of
// the router's cursor lock.
type target struct {
	cfg TargetConfig

	mu                 sync.RWMutex
	status             Status
	window             []bool // true marks a failure
	next               int
	filled             int
	errorCount         int
	lastResponseTimeMs int64
	lastCheckedAt      time.Time
}

func newTarget(cfg TargetConfig, windowSize int) *target {
	return &target{
		cfg:    cfg,
		status: StatusHealthy,
		window: make([]bool, windowSize),
	}
}

func (t *target) currentStatus() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// record pushes an outcome into the ring, evicting the oldest once full.
func (t *target) record(cfg Config, responseTimeMs int64, success bool, now time.Time) (from, to Status, errorRate float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.filled == len(t.window) {
		if t.window[t.next] {
			t.errorCount--
		}
	} else {
		t.filled++
	}
	t.window[t.next] = !success
	if !success {
		t.errorCount++
	}
	t.next = (t.next + 1) % len(t.window)

	t.lastResponseTimeMs = responseTimeMs
	t.lastCheckedAt = now

	errorRate = t.errorRateLocked()
	from = t.status
	t.status = cfg.classify(errorRate, responseTimeMs)
	return from, t.status, errorRate
}

func (t *target) errorRateLocked() float64 {
	if t.filled == 0 {
		return 0
	}
	return float64(t.errorCount) / float64(t.filled)
}

func (t *target) snapshot() TargetSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return TargetSnapshot{
		ID:                 t.cfg.ID,
		Address:            t.cfg.Address,
		Status:             t.status,
		RequestCount:       t.filled,
		ErrorCount:         t.errorCount,
		ErrorRate:          t.errorRateLocked(),
		LastResponseTimeMs: t.lastResponseTimeMs,
		LastCheckedAt:      t.lastCheckedAt,
	}
}
