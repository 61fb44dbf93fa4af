package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/XCEIN/consyf-sub000/internal/infra/logger"
)

const (
	// TraceIDHeader is the HTTP header name for trace ID
	TraceIDHeader = "X-Trace-ID"
	// RequestIDHeader carries the per-request correlation id
	RequestIDHeader = "X-Request-ID"
	// TraceIDKey is the context key for trace ID
	TraceIDKey = "trace_id"
	// RequestIDKey is the context key for request ID
	RequestIDKey = "request_id"
	// UserIDKey is the context key for authenticated user ID
	UserIDKey = "user_id"

	requestContextKey = "request_context"
)

// RequestContext holds request-scoped information
type RequestContext struct {
	RequestID string
	TraceID   string
	UserID    string
	IP        string
	UserAgent string
}

// EnrichContext assigns request and trace ids and stores them on both the gin and request contexts.
// The trace id of an active span wins over the X-Trace-ID header.
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		traceID := ""
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			traceID = sc.TraceID().String()
		}
		if traceID == "" {
			traceID = c.GetHeader(TraceIDHeader)
		}
		if traceID == "" {
			traceID = uuid.NewString()
		}

		c.Set(RequestIDKey, requestID)
		c.Set(TraceIDKey, traceID)
		c.Header(RequestIDHeader, requestID)
		c.Header(TraceIDHeader, traceID)

		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey{}, requestID)
		ctx = context.WithValue(ctx, logger.TraceIDKey{}, traceID)
		c.Request = c.Request.WithContext(ctx)

		c.Set(requestContextKey, &RequestContext{
			RequestID: requestID,
			TraceID:   traceID,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})

		c.Next()
	}
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(c *gin.Context) string {
	return c.GetString(TraceIDKey)
}

// GetRequestID retrieves the request ID from the context
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

// GetRequestContext retrieves the full request context
func GetRequestContext(c *gin.Context) *RequestContext {
	if ctx, exists := c.Get(requestContextKey); exists {
		if reqCtx, ok := ctx.(*RequestContext); ok {
			return reqCtx
		}
	}
	return &RequestContext{}
}
