// Package middleware holds gin middleware shared by HTTP services.
package middleware

import (
	"context"
	"strings"

	"coderunner/pkg/utils/contextkey"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	TraceIDHeader   = "X-Trace-Id"
	RequestIDHeader = "X-Request-Id"
	UserIDHeader    = "X-User-Id"

	traceIDContextKey   = "trace_id"
	requestIDContextKey = "request_id"
	userIDContextKey    = "user_id"
)

// TraceContextConfig controls how trace/request/user id are extracted and written.
type TraceContextConfig struct {
	AllowUserIDHeader bool
}

// TraceContextMiddleware ensures trace and request ids are in context and response headers.
func TraceContextMiddleware() gin.HandlerFunc {
	return TraceContextMiddlewareWithConfig(TraceContextConfig{})
}

// TraceContextMiddlewareWithConfig is the configurable version of TraceContextMiddleware.
// Missing trace and request ids are generated; the user id is only copied when allowed.
func TraceContextMiddlewareWithConfig(cfg TraceContextConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		propagate(c, TraceIDHeader, traceIDContextKey, contextkey.TraceID, true)
		propagate(c, RequestIDHeader, requestIDContextKey, contextkey.RequestID, true)
		if cfg.AllowUserIDHeader {
			propagate(c, UserIDHeader, userIDContextKey, contextkey.UserID, false)
		}
		c.Next()
	}
}

func propagate(c *gin.Context, header, ginKey string, ctxKey contextkey.Key, generate bool) {
	value := strings.TrimSpace(c.GetHeader(header))
	if value == "" {
		if !generate {
			return
		}
		value = uuid.NewString()
	}
	c.Set(ginKey, value)
	c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), ctxKey, value))
	c.Writer.Header().Set(header, value)
}
