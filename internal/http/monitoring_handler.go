package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/guttosm/resilience-layer/internal/domain/dto"
	"github.com/guttosm/resilience-layer/internal/monitoring"
	"github.com/guttosm/resilience-layer/internal/repository"
)

const (
	defaultSummaryWindow = 5 * time.Minute
	defaultAlertsLimit   = 100
)

// SinkReader is the read side of the metrics sink.
type SinkReader interface {
	Summary(window time.Duration) map[string]monitoring.Summary
	Alerts(limit int) []monitoring.Alert
	Insights() monitoring.Insights
}

// MonitoringHandler serves the metrics sink and the archived alerts.
type MonitoringHandler struct {
	sink    SinkReader
	archive repository.AlertsRepositoryInterface
}

// NewMonitoringHandler creates a MonitoringHandler. archive may be nil when
// no database is configured.
func NewMonitoringHandler(sink SinkReader, archive repository.AlertsRepositoryInterface) *MonitoringHandler {
	return &MonitoringHandler{sink: sink, archive: archive}
}

// Summary handles GET /api/monitoring/summary?window=5m.
func (h *MonitoringHandler) Summary(c *gin.Context) {
	var q dto.SummaryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "window", err)
		return
	}
	window, err := q.WindowOr(defaultSummaryWindow)
	if err == nil && window <= 0 {
		err = errNonPositiveWindow
	}
	if err != nil {
		badRequest(c, "window", err)
		return
	}

	success(c, http.StatusOK, gin.H{
		"window":  window.String(),
		"metrics": h.sink.Summary(window),
	})
}

// Insights handles GET /api/monitoring/insights.
func (h *MonitoringHandler) Insights(c *gin.Context) {
	success(c, http.StatusOK, h.sink.Insights())
}

// Alerts handles GET /api/monitoring/alerts?limit=N.
func (h *MonitoringHandler) Alerts(c *gin.Context) {
	q := dto.AlertsQuery{Limit: defaultAlertsLimit}
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "limit", err)
		return
	}
	success(c, http.StatusOK, h.sink.Alerts(q.Limit))
}

// AlertHistory handles GET /api/monitoring/alerts/history?metric=&limit=.
func (h *MonitoringHandler) AlertHistory(c *gin.Context) {
	if h.archive == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, dto.NewError(dto.ErrCodeNotFound, "Alert archive is not configured"))
		return
	}
	q := dto.AlertsQuery{Limit: defaultAlertsLimit}
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "limit", err)
		return
	}

	docs, err := h.archive.Recent(c.Request.Context(), c.Query("metric"), q.Limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	counts, err := h.archive.CountBySeverity(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	success(c, http.StatusOK, gin.H{
		"alerts":      docs,
		"by_severity": counts,
	})
}
