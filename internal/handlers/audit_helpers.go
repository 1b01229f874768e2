package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"chat-delivery-service/internal/middleware"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func traceIDFromContext(c *gin.Context) string {
	sc := trace.SpanContextFromContext(c.Request.Context())
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

func userIDFromContext(c *gin.Context) *string {
	if val, ok := c.Get(middleware.UserIDKey); ok {
		if userID, ok := val.(string); ok && userID != "" {
			return &userID
		}
	}

	if header := c.GetHeader("X-User-ID"); header != "" {
		return &header
	}

	return nil
}
