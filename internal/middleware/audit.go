package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-platform/internal/service/audit"
)

// AuditClient stores the caller's address and user agent on the request
// context so audit entries written by services can include them.
func AuditClient() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := audit.WithClient(c.Request.Context(), c.ClientIP(), c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
