package telemetry

import (
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RegisterDBTracing installs the otelgorm plugin so every store statement
// becomes a child span of the calling sync cycle or request. Query
// variables are never recorded.
func RegisterDBTracing(db *gorm.DB, provider trace.TracerProvider, logger *zap.Logger) error {
	opts := []otelgorm.Option{
		otelgorm.WithDBName(db.Dialector.Name()),
		otelgorm.WithoutQueryVariables(),
	}
	if provider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(provider))
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	logger.Debug("Database tracing enabled", zap.String("dialect", db.Dialector.Name()))
	return nil
}
