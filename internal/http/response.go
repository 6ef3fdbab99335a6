package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/guttosm/resilience-layer/internal/domain/dto"
	"github.com/guttosm/resilience-layer/internal/middleware"
)

// success writes data wrapped in dto.SuccessResponse.
func success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, dto.NewSuccess(data, middleware.GetRequestID(c)))
}

// badRequest renders a validation failure directly; it is not a server error
// worth logging through ErrorHandler.
func badRequest(c *gin.Context, field string, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewError(dto.ErrCodeInvalidRequest, "Invalid request parameters").
		WithDetail(field, err.Error()).
		WithRequestID(middleware.GetRequestID(c)))
}
