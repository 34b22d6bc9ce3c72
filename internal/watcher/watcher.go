package watcher

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Refresher rescans state and reports whether anything changed.
type Refresher interface {
	Refresh() (bool, error)
}

// RefresherFunc is a function adapter for Refresher.
type RefresherFunc func() (bool, error)

func (f RefresherFunc) Refresh() (bool, error) {
	return f()
}

// Config holds watcher configuration.
type Config struct {
	Interval time.Duration // Rescan interval (default: 30s, negative disables)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 30 * time.Second,
	}
}

// Stats contains watcher counters.
type Stats struct {
	Cycles  int64 `json:"cycles"`
	Changes int64 `json:"changes"`
	Errors  int64 `json:"errors"`
}

// Watcher periodically calls a Refresher.
type Watcher struct {
	cfg       Config
	refresher Refresher
	logger    *slog.Logger

	cycles  atomic.Int64
	changes atomic.Int64
	errors  atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Watcher.
func New(cfg Config, refresher Refresher, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval == 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Watcher{
		cfg:       cfg,
		refresher: refresher,
		logger:    logger,
	}
}

// Enabled reports whether Start launches the rescan loop.
func (w *Watcher) Enabled() bool {
	return w.cfg.Interval > 0
}

// Start begins the rescan loop. It is a no-op when the watcher is disabled.
func (w *Watcher) Start(ctx context.Context) error {
	if !w.Enabled() {
		w.logger.Info("workspace watcher disabled")
		return nil
	}

	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.run()

	w.logger.Info("workspace watcher started", "interval", w.cfg.Interval)
	return nil
}

// Stop gracefully shuts down the watcher.
func (w *Watcher) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("workspace watcher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current counters.
func (w *Watcher) Stats() Stats {
	return Stats{
		Cycles:  w.cycles.Load(),
		Changes: w.changes.Load(),
		Errors:  w.errors.Load(),
	}
}

// run is the main rescan loop.
func (w *Watcher) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.check()
		}
	}
}

// check runs a single rescan.
func (w *Watcher) check() {
	start := time.Now()
	w.cycles.Add(1)

	changed, err := w.refresher.Refresh()
	if err != nil {
		w.errors.Add(1)
		w.logger.Warn("workspace rescan failed", "error", err)
		return
	}
	if changed {
		w.changes.Add(1)
	}

	w.logger.Debug("workspace rescan complete",
		"changed", changed,
		"duration", time.Since(start),
	)
}
