package dto

import "time"

// SummaryQuery selects the window of GET /api/monitoring/summary.
type SummaryQuery struct {
	Window string `form:"window"`
}

// WindowOr parses Window, falling back to def when it is empty.
func (q SummaryQuery) WindowOr(def time.Duration) (time.Duration, error) {
	if q.Window == "" {
		return def, nil
	}
	return time.ParseDuration(q.Window)
}

// AlertsQuery limits GET /api/monitoring/alerts.
type AlertsQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// InvalidateQuery selects the prefix of DELETE /api/cache.
type InvalidateQuery struct {
	Prefix string `form:"prefix" binding:"required"`
}

// InvalidateResponse acknowledges a cache invalidation.
type InvalidateResponse struct {
	Prefix string `json:"prefix"`
}

// LookupResponse is the body of GET /api/lookup/*path.
type LookupResponse struct {
	Path     string `json:"path"`
	Source   string `json:"source"`
	TargetID string `json:"target_id,omitempty"`
	Value    string `json:"value"`
}
