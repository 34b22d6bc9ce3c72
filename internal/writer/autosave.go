package writer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/inkwell/internal/database"
	"github.com/rickgao/inkwell/internal/router"
	"github.com/rickgao/inkwell/internal/workspace"
)

// AutosaveWriter consumes snapshots from a buffer and writes them to a Store.
type AutosaveWriter struct {
	cfg    Config
	logger *slog.Logger

	input *router.GrowableBuffer[Snapshot]
	store Store

	// writeMu serialises store writes with Forget.
	writeMu sync.Mutex

	// Batching
	batchMu   sync.Mutex
	pending   map[workspace.Hash]Snapshot
	forgotten map[workspace.Hash]time.Time
	metrics   Metrics

	// Lifecycle
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	flushTicker *time.Ticker
}

// NewAutosaveWriter creates a new AutosaveWriter.
func NewAutosaveWriter(
	cfg Config,
	input *router.GrowableBuffer[Snapshot],
	store Store,
	logger *slog.Logger,
) *AutosaveWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}
	return &AutosaveWriter{
		cfg:       cfg,
		logger:    logger,
		input:     input,
		store:     store,
		pending:   make(map[workspace.Hash]Snapshot),
		forgotten: make(map[workspace.Hash]time.Time),
		ctx:       context.Background(),
	}
}

// Start begins consuming snapshots.
func (w *AutosaveWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(2)
	go w.consumeLoop()
	go w.flushLoop()

	w.logger.Info("autosave writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop shuts the writer down and writes everything still queued.
func (w *AutosaveWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping autosave writer")

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("autosave writer stopped")
	case <-ctx.Done():
		w.logger.Warn("autosave writer stop timed out")
	}

	// Final flush
	return w.Flush(ctx)
}

// Flush moves everything queued into the batch and writes it.
func (w *AutosaveWriter) Flush(ctx context.Context) error {
	for _, snap := range w.input.DrainTo(0) {
		w.add(snap)
	}
	return w.flush(ctx)
}

// Latest returns the newest snapshot for h, pending or stored.
func (w *AutosaveWriter) Latest(ctx context.Context, h workspace.Hash) (Snapshot, bool, error) {
	if err := w.Flush(ctx); err != nil {
		w.logger.Warn("flush before lookup failed", "error", err)
	}

	w.batchMu.Lock()
	snap, ok := w.pending[h]
	w.batchMu.Unlock()
	if ok {
		return snap, true, nil
	}

	row, err := w.store.Get(ctx, uint64(h))
	if errors.Is(err, database.ErrNotFound) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	return Snapshot{Hash: h, Path: row.Path, Content: row.Content, At: row.SavedAt}, true, nil
}

// Forget discards snapshots for h taken at or before at, both pending and stored.
func (w *AutosaveWriter) Forget(ctx context.Context, h workspace.Hash, at time.Time) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.batchMu.Lock()
	if prev, ok := w.forgotten[h]; !ok || at.After(prev) {
		w.forgotten[h] = at
	}
	if snap, ok := w.pending[h]; ok && !snap.At.After(at) {
		delete(w.pending, h)
		w.metrics.Discarded++
	}
	w.batchMu.Unlock()

	return w.store.DeleteBefore(ctx, uint64(h), at)
}

// Stats returns current metrics.
func (w *AutosaveWriter) Stats() Metrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads from the input buffer and accumulates batches.
func (w *AutosaveWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		snap, ok := w.input.TryReceive()
		if !ok {
			select {
			case <-w.ctx.Done():
				return
			case <-time.After(10 * time.Millisecond):
				continue
			}
		}

		if w.add(snap) {
			if err := w.flush(w.ctx); err != nil && w.ctx.Err() == nil {
				w.logger.Warn("autosave flush failed", "error", err)
			}
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *AutosaveWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			if err := w.flush(w.ctx); err != nil && w.ctx.Err() == nil {
				w.logger.Warn("autosave flush failed", "error", err)
			}
		}
	}
}

// add merges snap into the batch and reports whether the batch is full.
func (w *AutosaveWriter) add(snap Snapshot) bool {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()

	w.metrics.Received++

	if cutoff, ok := w.forgotten[snap.Hash]; ok {
		if !snap.At.After(cutoff) {
			w.metrics.Discarded++
			return false
		}
		delete(w.forgotten, snap.Hash)
	}

	if prev, ok := w.pending[snap.Hash]; ok {
		w.metrics.Deduplicated++
		if prev.At.After(snap.At) {
			return false
		}
	}
	w.pending[snap.Hash] = snap

	return len(w.pending) >= w.cfg.BatchSize
}

// flush writes the pending batch to the store.
func (w *AutosaveWriter) flush(ctx context.Context) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.batchMu.Lock()
	if len(w.pending) == 0 {
		w.batchMu.Unlock()
		return nil
	}
	batch := w.pending
	w.pending = make(map[workspace.Hash]Snapshot, len(batch))
	w.batchMu.Unlock()

	rows := make([]database.AutosaveRow, 0, len(batch))
	for _, snap := range batch {
		rows = append(rows, snap.row())
	}

	start := time.Now()
	if err := w.store.PutBatch(ctx, rows); err != nil {
		w.logger.Error("autosave batch write failed", "error", err, "count", len(rows))
		w.requeue(batch)
		return err
	}

	w.batchMu.Lock()
	w.metrics.Written += int64(len(rows))
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed autosaves",
		"count", len(rows),
		"duration", time.Since(start),
	)
	return nil
}

// requeue puts a failed batch back unless newer snapshots arrived meanwhile.
func (w *AutosaveWriter) requeue(batch map[workspace.Hash]Snapshot) {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()

	w.metrics.Errors++
	for h, snap := range batch {
		if cur, ok := w.pending[h]; ok && cur.At.After(snap.At) {
			continue
		}
		w.pending[h] = snap
	}
}
