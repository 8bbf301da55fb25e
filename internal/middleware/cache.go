package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// PublicCache marks successful GET responses as cacheable by shared caches
// for maxAge seconds. Everything else is sent with no-store.
func PublicCache(maxAge int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Header("Cache-Control", "no-store")
			c.Next()
			return
		}
		c.Header("Cache-Control", "public, max-age="+strconv.Itoa(maxAge))
		c.Header("Vary", "Accept")
		c.Next()
	}
}

// NoStore keeps authenticated responses out of every cache.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
