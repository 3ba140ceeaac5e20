package api

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"kaizenbot/internal/redis"
)

// apiKeyMiddleware rejects requests without the configured bearer key. When
// no key is configured all requests pass, which keeps local setups simple.
func apiKeyMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if header == "" || token == header || token != apiKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		c.Next()
	}
}

// rateLimitMiddleware caps requests per client IP within a fixed window,
// counting in redis so the limit holds across restarts. Redis outages fail
// open: throttling is protection, not a feature callers depend on.
func rateLimitMiddleware(cache *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cache == nil || limit <= 0 {
			c.Next()
			return
		}
		key := fmt.Sprintf("ratelimit:%s", c.ClientIP())
		count, err := cache.Hit(c.Request.Context(), key, window)
		if err != nil {
			log.Printf("api: rate limit check: %v", err)
			c.Next()
			return
		}
		if count > int64(limit) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, please retry later"})
			return
		}
		c.Next()
	}
}
