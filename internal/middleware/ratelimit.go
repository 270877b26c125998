package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long an unused client bucket is kept.
const limiterIdleTTL = 10 * time.Minute

// RateLimit returns per-client rate limiting middleware using token buckets.
// A client is the API key set by APIKeyAuth when there is one, otherwise
// the client IP, so the public feed endpoints are limited too.
//
// Each client gets a bucket that fills at rps tokens/sec up to burst
// tokens; an empty bucket means 429. Buckets of clients that went quiet
// are evicted, so the map does not grow with every IP ever seen.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	var mu sync.Mutex
	limiters := cache.New(limiterIdleTTL, limiterIdleTTL)

	return func(c *gin.Context) {
		client := clientKey(c)

		mu.Lock()
		var limiter *rate.Limiter
		if v, ok := limiters.Get(client); ok {
			limiter = v.(*rate.Limiter)
		} else {
			limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
		// Touch on every request so only idle buckets expire.
		limiters.SetDefault(client, limiter)
		mu.Unlock()

		if !limiter.Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}

func clientKey(c *gin.Context) string {
	if key, ok := c.Get(apiKeyContextKey); ok {
		if s, ok := key.(string); ok && s != "" {
			return "key:" + s
		}
	}
	return "ip:" + c.ClientIP()
}
