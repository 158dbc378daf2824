package ledgersync

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Runner drives the engine in the background on a timer and on demand.
// Cycle errors are logged and never stop the loop.
type Runner struct {
	engine   *Engine
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger

	trigger chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunner creates a runner. timeout bounds each cycle; zero means none.
func NewRunner(engine *Engine, interval, timeout time.Duration, logger *zap.Logger) *Runner {
	return &Runner{
		engine:   engine,
		interval: interval,
		timeout:  timeout,
		logger:   logger.Named("sync-runner"),
		trigger:  make(chan struct{}, 1),
	}
}

// Start runs a first cycle immediately, then one per interval
func (r *Runner) Start(ctx context.Context) error {
	if r.interval <= 0 {
		return errors.New("sync interval must be positive")
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go r.loop(ctx)

	r.logger.Info("sync runner started", zap.Duration("interval", r.interval))
	return nil
}

// Trigger asks for a cycle as soon as possible. Requests made while one
// is already queued are merged.
func (r *Runner) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Stop cancels the running cycle and waits for the loop to exit
func (r *Runner) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("sync runner stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runOnce(ctx)
		case <-r.trigger:
			r.runOnce(ctx)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("sync cycle panicked", zap.Any("panic", p))
		}
	}()

	if _, err := r.engine.RunCycle(ctx); err != nil && ctx.Err() == nil {
		r.logger.Debug("sync cycle failed; retrying next interval", zap.Error(err))
	}
}
