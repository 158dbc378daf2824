package ledger

import (
	"context"
	"fmt"

	"github.com/tonka1973/BreweryManager-sub001/internal/domain/ledger"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/config"
	"go.uber.org/zap"
)

// New creates the adapter selected by cfg.Driver
func New(ctx context.Context, cfg config.RemoteConfig, logger *zap.Logger) (ledger.Adapter, error) {
	logger = logger.Named("ledger")
	switch cfg.Driver {
	case "", "memory":
		logger.Warn("Using in-memory remote ledger; changes are not shared")
		return NewMemoryLedger(), nil
	case "http":
		return NewHTTPLedger(cfg.HTTP, WithHTTPLogger(logger))
	case "s3":
		return NewS3Ledger(ctx, cfg.S3, logger)
	case "redis":
		return NewRedisLedger(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown remote ledger driver %q", cfg.Driver)
	}
}
