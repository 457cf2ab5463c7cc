package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// timeFormat is the wire format for all timestamps: RFC 3339 in UTC.
const timeFormat = time.RFC3339

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}
