package middleware

import (
	"net/http"

	"github.com/GoPolymarket/levergate/internal/service"
	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware throttles per caller. Must run after CallerAuth.
func RateLimitMiddleware(registry *service.CallerRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := CallerFrom(c)
		if !ok {
			// CallerAuth 应该已经拦截
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		if !registry.Limiter(caller).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": "1s",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
