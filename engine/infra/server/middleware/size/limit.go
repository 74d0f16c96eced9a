// Package size caps request bodies before handlers bind them.
package size

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// BodySizeLimiter limits the request body size. Reads past limit fail, which
// surfaces as a binding error in the handler.
func BodySizeLimiter(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":   "invalid_input",
				"details": "request body too large",
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
