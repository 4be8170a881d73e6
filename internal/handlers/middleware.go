package handlers

import (
	"errors"
	"net/http"

	"delivery_ops/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const adminUserKey = "admin_user"

// AdminAuth checks HTTP Basic credentials against the admin user table.
func AdminAuth(userService services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok {
			c.Header("WWW-Authenticate", `Basic realm="delivery-ops"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		user, err := userService.Authenticate(c.Request.Context(), username, password)
		if err != nil {
			if errors.Is(err, services.ErrUnauthorized) {
				log.Warn().Str("action", "admin_auth_failed").Str("username", username).Str("ip", c.ClientIP()).Msg("Rejected admin credentials")
				c.Header("WWW-Authenticate", `Basic realm="delivery-ops"`)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
				return
			}
			log.Error().Err(err).Str("action", "admin_auth_error").Msg("Failed to check admin credentials")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		c.Set(adminUserKey, user.Username)
		c.Next()
	}
}
