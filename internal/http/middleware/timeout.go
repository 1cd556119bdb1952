package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Timeout injects a deadline into the request context so downstream
// database and HTTP calls get cancelled. c.Next must stay on this
// goroutine: gin's ResponseWriter is not safe for concurrent writes.
func Timeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			abortError(c, http.StatusGatewayTimeout, "TIMEOUT", "request timed out")
		}
	}
}
