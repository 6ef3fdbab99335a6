package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/guttosm/resilience-layer/internal/monitoring"
)

// ResponseTimeMetric is the sink metric fed by RequestLogger.
const ResponseTimeMetric = "http.response_time_ms"

// RequestLogger logs every request and records its latency into recorder,
// tagged with the matched route so alert thresholds see bounded series.
func RequestLogger(recorder monitoring.Recorder) gin.HandlerFunc {
	if recorder == nil {
		recorder = monitoring.Nop
	}
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		log := zerolog.Ctx(c.Request.Context()).With().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status_code", statusCode).
			Int64("duration_ms", latency.Milliseconds()).
			Str("ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Logger()

		log.WithLevel(levelForStatus(statusCode)).Msg("HTTP request")

		recorder.Record(ResponseTimeMetric, float64(latency.Milliseconds()), map[string]string{
			"path":   route,
			"method": c.Request.Method,
		})
	}
}

// levelForStatus returns the log level for an HTTP status code.
func levelForStatus(statusCode int) zerolog.Level {
	switch {
	case statusCode >= 500:
		return zerolog.ErrorLevel
	case statusCode >= 400:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}
