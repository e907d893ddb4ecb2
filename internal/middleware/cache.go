package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// CacheControl lets the browser reuse a response for maxAgeSeconds. The
// response stays private because every API route is authenticated.
func CacheControl(maxAgeSeconds int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", fmt.Sprintf("private, max-age=%d", maxAgeSeconds))
		c.Next()
	}
}

// NoStore marks responses as uncacheable. Used on every route that returns
// answers or scores.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Header("Pragma", "no-cache")
		c.Next()
	}
}
