package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/ratelimit"
)

// RateLimitMiddleware throttles mutating requests per authenticated
// user, falling back to the client IP before auth ran.
func RateLimitMiddleware(limiter ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString("userID")
		if key == "" {
			key = c.ClientIP()
		}
		if !limiter.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
