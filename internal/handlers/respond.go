package handlers

import (
	"errors"
	"net/http"

	"delivery_ops/internal/printing"
	"delivery_ops/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// respondError maps service errors to status codes. Anything unrecognised is
// a storage or transport fault and becomes a 500 without detail.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrAgentNotFound),
		errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrReportNotFound),
		errors.Is(err, printing.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidOrderType),
		errors.Is(err, services.ErrInvalidCartItem),
		errors.Is(err, services.ErrNoOrderIDs):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).
			Str("action", "request_failed").
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// actor is the admin username set by AdminAuth, if any.
func actor(c *gin.Context) string {
	if name := c.GetString(adminUserKey); name != "" {
		return name
	}
	return "admin"
}
