package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/softadastra-group/softadastra-chat/internal/services"
)

type RateLimitMiddleware struct {
	redisService *services.RedisService
}

func NewRateLimitMiddleware(redisService *services.RedisService) *RateLimitMiddleware {
	return &RateLimitMiddleware{redisService: redisService}
}

// RateLimit limits authenticated callers per user and endpoint.
func (rm *RateLimitMiddleware) RateLimit(requests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserID(c)
		if userID == 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		key := fmt.Sprintf("rate_limit:%d:%s", userID, c.Request.URL.Path)
		rm.check(c, key, requests, window)
	}
}

// RateLimitIP limits public routes per client address. The analytics ingest
// endpoint sits behind this one.
func (rm *RateLimitMiddleware) RateLimitIP(requests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("rate_limit_ip:%s:%s", c.ClientIP(), c.Request.URL.Path)
		rm.check(c, key, requests, window)
	}
}

func (rm *RateLimitMiddleware) check(c *gin.Context, key string, requests int, window time.Duration) {
	allowed, err := rm.redisService.CheckRateLimit(c.Request.Context(), key, requests, window)
	if err != nil {
		// A Redis outage should not take the API down with it.
		c.Next()
		return
	}
	if !allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":   "rate limit exceeded",
			"message": fmt.Sprintf("too many requests, limit is %d per %v", requests, window),
		})
		c.Abort()
		return
	}
	c.Next()
}
