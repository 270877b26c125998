// Package middleware contains Gin middleware functions.
// Middleware in Gin is a handler that runs before (or after) your route handler.
// It calls c.Next() to proceed or c.Abort() to stop the chain.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// apiKeyContextKey is where the auth middleware stores the accepted key.
const apiKeyContextKey = "api_key"

// requestKey reads the key from the X-API-Key header or the api_key query
// param (the query param lets <img src="...?api_key=xxx"> work in browsers).
func requestKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	return c.Query("api_key")
}

func keySet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k != "" {
			set[k] = struct{}{}
		}
	}
	return set
}

// APIKeyAuth returns middleware that validates API keys. With no keys
// configured the service is open and every request passes.
func APIKeyAuth(validKeys []string) gin.HandlerFunc {
	keys := keySet(validKeys)

	return func(c *gin.Context) {
		if len(keys) == 0 {
			c.Next()
			return
		}

		key := requestKey(c)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing API key",
			})
			return
		}
		if _, ok := keys[key]; !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid API key",
			})
			return
		}

		// Downstream middleware (rate limiting) buckets by key.
		c.Set(apiKeyContextKey, key)
		c.Next()
	}
}

// AdminKeyAuth returns middleware that validates admin API keys. Unlike
// APIKeyAuth it fails closed: with no admin keys configured every request
// is refused.
func AdminKeyAuth(adminKeys []string) gin.HandlerFunc {
	keys := keySet(adminKeys)

	return func(c *gin.Context) {
		key := requestKey(c)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing admin API key",
			})
			return
		}
		if _, ok := keys[key]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "invalid admin API key",
			})
			return
		}

		c.Set(apiKeyContextKey, key)
		c.Next()
	}
}
