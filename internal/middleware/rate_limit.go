package middleware

import (
	"tradestream/internal/errors"
	"tradestream/internal/stability"

	"github.com/gin-gonic/gin"
)

// RateLimit rejects clients that exceed their per-IP token bucket.
func RateLimit(limiter *stability.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			AbortWithError(c, errors.NewAppError(errors.ErrCodeRateLimit, "Too many requests", nil))
			return
		}
		c.Next()
	}
}
