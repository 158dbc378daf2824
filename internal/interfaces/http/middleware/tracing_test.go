package middleware

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/logger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func TestTracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	router := gin.New()
	router.Use(Tracing("brewd-test", otelgin.WithTracerProvider(tp)))
	router.Use(logger.GinMiddleware(zap.NewNop()))
	router.Use(SpanAttributes())
	router.GET("/sync/conflicts", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.POST("/sync/run", func(c *gin.Context) {
		c.Status(http.StatusServiceUnavailable)
	})

	serve(router, http.MethodGet, "/sync/conflicts")
	serve(router, http.MethodPost, "/sync/run")

	spans := sr.Ended()
	require.Len(t, spans, 2)

	ok := spans[0]
	assert.Contains(t, ok.Name(), "/sync/conflicts")
	assert.NotEqual(t, codes.Error, ok.Status().Code)
	var requestID string
	for _, kv := range ok.Attributes() {
		if kv.Key == attribute.Key("request_id") {
			requestID = kv.Value.AsString()
		}
	}
	assert.NotEmpty(t, requestID)

	assert.Equal(t, codes.Error, spans[1].Status().Code)
}
