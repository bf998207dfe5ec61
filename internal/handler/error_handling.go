package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"persona-server/internal/ai"
	"persona-server/internal/models"
	"persona-server/internal/registry"
)

// errorStatus maps a service error to its HTTP status and public message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrEmptyMessage),
		errors.Is(err, models.ErrBadRequest),
		errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, models.ErrCharacterNotFound):
		return http.StatusNotFound, "Character not found"
	case errors.Is(err, models.ErrConnectionNotFound):
		return http.StatusNotFound, "Connection not found"
	case errors.Is(err, models.ErrMessageNotFound):
		return http.StatusNotFound, "Message not found"
	case errors.Is(err, models.ErrUserNotFound), errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "Resource not found"
	case errors.Is(err, registry.ErrNoConnection), ai.IsConfigError(err):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, models.ErrRateLimited):
		return http.StatusTooManyRequests, "AI backend is rate limited, try again later"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "AI backend timed out"
	case errors.Is(err, ai.ErrAIGenerationFailed):
		return http.StatusBadGateway, "AI backend request failed"
	default:
		return http.StatusInternalServerError, "An unexpected internal error occurred"
	}
}

func (h *Handler) handleServiceError(c *gin.Context, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Int("status", status), zap.Error(err))
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, models.ErrorResponse{Error: msg})
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body: " + err.Error()})
}
