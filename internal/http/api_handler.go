package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/guttosm/resilience-layer/internal/balancer"
	"github.com/guttosm/resilience-layer/internal/cache"
	"github.com/guttosm/resilience-layer/internal/domain/dto"
	"github.com/guttosm/resilience-layer/internal/jobqueue"
	"github.com/guttosm/resilience-layer/internal/repository"
	"github.com/guttosm/resilience-layer/internal/service"
)

var errNonPositiveWindow = errors.New("must be positive")

// RouterStatsProvider exposes the health-aware router snapshot.
type RouterStatsProvider interface {
	Stats() balancer.Stats
}

// QueueStatsProvider exposes job queue counters.
type QueueStatsProvider interface {
	QueueStats(name string) (jobqueue.Stats, error)
	Queues() []string
}

// CacheStatsProvider exposes tiered cache counters.
type CacheStatsProvider interface {
	Stats() cache.Stats
}

// APIHandler serves the router, queue, cache and lookup endpoints.
type APIHandler struct {
	router  RouterStatsProvider
	queues  QueueStatsProvider
	cache   CacheStatsProvider
	lookup  service.LookupService
	history repository.JobHistoryRepositoryInterface
}

// APIHandlerOption configures an APIHandler.
type APIHandlerOption func(*APIHandler)

// WithJobHistory enables GET /api/queues/:name/history.
func WithJobHistory(repo repository.JobHistoryRepositoryInterface) APIHandlerOption {
	return func(h *APIHandler) {
		h.history = repo
	}
}

// NewAPIHandler creates an APIHandler.
func NewAPIHandler(router RouterStatsProvider, queues QueueStatsProvider, c CacheStatsProvider, lookup service.LookupService, opts ...APIHandlerOption) *APIHandler {
	h := &APIHandler{
		router: router,
		queues: queues,
		cache:  c,
		lookup: lookup,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RouterStats handles GET /api/router/stats.
func (h *APIHandler) RouterStats(c *gin.Context) {
	success(c, http.StatusOK, h.router.Stats())
}

// ListQueues handles GET /api/queues.
func (h *APIHandler) ListQueues(c *gin.Context) {
	names := h.queues.Queues()
	stats := make([]jobqueue.Stats, 0, len(names))
	for _, name := range names {
		s, err := h.queues.QueueStats(name)
		if err != nil {
			continue
		}
		stats = append(stats, s)
	}
	success(c, http.StatusOK, stats)
}

// QueueStats handles GET /api/queues/:name/stats.
func (h *APIHandler) QueueStats(c *gin.Context) {
	stats, err := h.queues.QueueStats(c.Param("name"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	success(c, http.StatusOK, stats)
}

// QueueHistory handles GET /api/queues/:name/history?status=&since=&limit=.
func (h *APIHandler) QueueHistory(c *gin.Context) {
	if h.history == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, dto.NewError(dto.ErrCodeNotFound, "Job history is not configured"))
		return
	}

	q := repository.JobHistoryQuery{
		Queue:  c.Param("name"),
		Status: c.Query("status"),
		Limit:  100,
	}
	var page dto.AlertsQuery
	if err := c.ShouldBindQuery(&page); err != nil {
		badRequest(c, "limit", err)
		return
	}
	if page.Limit > 0 {
		q.Limit = page.Limit
	}
	if raw := c.Query("since"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			badRequest(c, "since", err)
			return
		}
		since := time.Now().Add(-d)
		q.Since = &since
	}

	docs, err := h.history.Query(c.Request.Context(), q)
	if err != nil {
		_ = c.Error(err)
		return
	}
	total, err := h.history.Count(c.Request.Context(), q)
	if err != nil {
		_ = c.Error(err)
		return
	}
	success(c, http.StatusOK, gin.H{"jobs": docs, "total": total})
}

// CacheStats handles GET /api/cache/stats.
func (h *APIHandler) CacheStats(c *gin.Context) {
	success(c, http.StatusOK, h.cache.Stats())
}

// InvalidateCache handles DELETE /api/cache?prefix=...
func (h *APIHandler) InvalidateCache(c *gin.Context) {
	var q dto.InvalidateQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "prefix", err)
		return
	}
	h.lookup.Invalidate(c.Request.Context(), q.Prefix)
	success(c, http.StatusOK, dto.InvalidateResponse{Prefix: q.Prefix})
}

// Lookup handles GET /api/lookup/*path.
func (h *APIHandler) Lookup(c *gin.Context) {
	path := c.Param("path")
	if strings.Trim(path, "/") == "" {
		badRequest(c, "path", errors.New("must not be empty"))
		return
	}

	res, err := h.lookup.Lookup(c.Request.Context(), path)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Header("X-Cache-Source", string(res.Source))
	success(c, http.StatusOK, dto.LookupResponse{
		Path:     path,
		Source:   string(res.Source),
		TargetID: res.TargetID,
		Value:    string(res.Value),
	})
}
