package middleware

import (
	"strings"

	"officer-review-api/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDHeader      = "X-Request-ID"
	IdempotencyKeyHeader = "Idempotency-Key"
)

// RequestContext tags each request with an id and carries the client details
// and idempotency key into the request context for the activity log. The
// client address is gin's ClientIP, so forwarding headers count only when the
// engine trusts the sending proxy.
func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}
		c.Set("requestID", requestID)
		c.Header(RequestIDHeader, requestID)

		ctx := services.WithClientInfo(c.Request.Context(), services.ClientInfo{
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		if key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader)); key != "" {
			ctx = services.WithIdempotencyKey(ctx, key)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
