// Package sweeper periodically removes expired shares.
package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper is the subset of the share service the collector drives.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Config controls the collector loop.
type Config struct {
	Enabled  bool
	Interval time.Duration
	// RunTimeout bounds a single sweep.
	RunTimeout time.Duration
}

type Collector struct {
	target Sweeper
	cfg    Config
	log    *zap.Logger
	stopCh chan struct{}
	doneCh chan struct{}
}

// New returns a collector; a zero interval defaults to one hour.
func New(target Sweeper, cfg Config, log *zap.Logger) *Collector {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 5 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Collector{
		target: target,
		cfg:    cfg,
		log:    log,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the worker goroutine. It is a no-op when disabled.
func (c *Collector) Start() {
	if !c.cfg.Enabled {
		c.log.Info("share sweeper disabled")
		return
	}
	c.log.Info("share sweeper started", zap.Duration("interval", c.cfg.Interval))
	go c.worker()
}

// Stop signals the worker and waits for it or for ctx.
func (c *Collector) Stop(ctx context.Context) error {
	if !c.cfg.Enabled {
		return nil
	}
	close(c.stopCh)
	select {
	case <-c.doneCh:
		c.log.Info("share sweeper stopped")
		return nil
	case <-ctx.Done():
		c.log.Warn("share sweeper shutdown timeout")
		return ctx.Err()
	}
}

// RunNow performs one sweep synchronously.
func (c *Collector) RunNow(ctx context.Context) (int, error) {
	return c.run(ctx)
}

func (c *Collector) worker() {
	defer close(c.doneCh)

	t := time.NewTicker(c.cfg.Interval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RunTimeout)
			_, _ = c.run(ctx)
			cancel()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Collector) run(ctx context.Context) (int, error) {
	n, err := c.target.Sweep(ctx)
	if err != nil {
		c.log.Error("share sweep failed", zap.Int("removed", n), zap.Error(err))
		return n, err
	}
	if n > 0 {
		c.log.Info("expired shares removed", zap.Int("removed", n))
	}
	return n, nil
}
