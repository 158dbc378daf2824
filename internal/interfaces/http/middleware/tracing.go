package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/logger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracing starts a server span per request named after its route
func Tracing(serviceName string, opts ...otelgin.Option) gin.HandlerFunc {
	return otelgin.Middleware(serviceName, opts...)
}

// SpanAttributes tags the request span with the request ID and marks it
// failed on server errors. It must run after Tracing and the request
// logger, while the span is still open.
func SpanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}
		if id := logger.GetRequestID(c.Request.Context()); id != "" {
			span.SetAttributes(attribute.String("request_id", id))
		}

		c.Next()

		if c.Writer.Status() < 500 {
			return
		}
		span.SetStatus(codes.Error, "server error")
		for _, err := range c.Errors {
			span.RecordError(err.Err)
		}
	}
}
