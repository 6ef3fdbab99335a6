package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/guttosm/resilience-layer/internal/apperrors"
	"github.com/guttosm/resilience-layer/internal/balancer"
	"github.com/guttosm/resilience-layer/internal/domain/dto"
	"github.com/guttosm/resilience-layer/internal/jobqueue"
	"github.com/guttosm/resilience-layer/internal/service"
)

// ErrorHandler renders the last error attached to the gin context.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		ginErr := c.Errors.Last()
		status, message := StatusForError(ginErr.Err)
		if ginErr.IsType(gin.ErrorTypeBind) {
			status, message = http.StatusBadRequest, ginErr.Error()
		}

		log := zerolog.Ctx(c.Request.Context())
		event := log.Warn()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.Err(ginErr.Err).
			Int("status_code", status).
			Str("path", c.Request.URL.Path).
			Str("method", c.Request.Method).
			Msg("Request error")

		if !c.Writer.Written() {
			c.JSON(status, dto.NewError(dto.ErrCodeFromStatus(status), message).
				WithRequestID(GetRequestID(c)))
		}
	}
}

// StatusForError maps a domain error to an HTTP status and a client message.
func StatusForError(err error) (int, string) {
	var statusErr *service.StatusError
	switch {
	case errors.Is(err, balancer.ErrNoHealthyTarget):
		return http.StatusServiceUnavailable, "No healthy backend target"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Request timeout"
	case errors.As(err, &statusErr) && !statusErr.TargetFault():
		return statusErr.Code, http.StatusText(statusErr.Code)
	case errors.Is(err, apperrors.ErrTransientBackend):
		return http.StatusBadGateway, "Backend call failed"
	case errors.Is(err, jobqueue.ErrUnknownQueue):
		return http.StatusNotFound, "Queue not found"
	case errors.Is(err, jobqueue.ErrQueueFull):
		return http.StatusTooManyRequests, "Queue is full"
	case errors.Is(err, apperrors.ErrConfiguration), errors.Is(err, jobqueue.ErrInvalidPriority):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "An unexpected error occurred"
	}
}
