// Package metrics implements the shard-request metrics snapshot engine: a
// time-windowed, relationally-structured buffer that ingests half-events
// from a search/indexing engine's shards and turns them into per-window
// latency, per-operation, and thread-utilization views.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// WindowSnapshot is what the Rollover Controller hands to downstream
// consumers when a window closes: the closing window's aggregation
// views, computed once before the buffer is destroyed.
type WindowSnapshot struct {
	Window      int64
	Latency     []LatencyRecord
	LatencyByOp []OpAggregate
	ThreadUtil  []ThreadUtilRecord
}

// Engine orchestrates the Event Buffer, its aggregation views, and the
// Rollover Controller. It is the single owner of the "current"
// WindowBuffer; producers always target whichever buffer is current at
// the wall-clock instant their call arrives.
type Engine struct {
	cfg   *Config
	store *Store
	hub   *Hub

	mu           sync.RWMutex
	current      *WindowBuffer
	lastRollover time.Time

	publisher *Publisher // optional wire sink, in addition to hub
}

// New creates an Engine with a freshly opened store and a current buffer
// for the window containing now.
func New(cfg *Config) (*Engine, error) {
	store, err := OpenStore(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	w := cfg.WindowStart(time.Now())
	buf, err := store.NewBuffer(context.Background(), w)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create initial buffer: %w", err)
	}

	return &Engine{
		cfg:          cfg,
		store:        store,
		hub:          NewHub(),
		current:      buf,
		lastRollover: time.Now(),
	}, nil
}

// Hub exposes the pub/sub fan-out so a downstream writer can subscribe to
// TopicWindowClosed before Run starts.
func (e *Engine) Hub() *Hub { return e.hub }

// SetPublisher attaches a wire-format sink (see internal/protocol) that
// receives every WindowSnapshot in addition to in-process Hub subscribers.
func (e *Engine) SetPublisher(p *Publisher) { e.publisher = p }

// target returns the buffer current producers should write into.
func (e *Engine) target() *WindowBuffer {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// --- Producer interface ---

func (e *Engine) PutStart(ctx context.Context, st int64, dims Dims) error {
	return e.target().PutStart(ctx, st, dims)
}

func (e *Engine) PutEnd(ctx context.Context, et int64, dims Dims) error {
	return e.target().PutEnd(ctx, et, dims)
}

func (e *Engine) PutBatch(ctx context.Context, events []HalfEvent) error {
	return e.target().PutBatch(ctx, events)
}

// --- Consumer interface, against the current window ---

func (e *Engine) FetchAll(ctx context.Context) ([]HalfEvent, error) { return e.target().FetchAll(ctx) }

func (e *Engine) FetchLatency(ctx context.Context) ([]LatencyRecord, error) {
	return e.target().Latency(ctx)
}

func (e *Engine) FetchLatencyByOp(ctx context.Context) ([]OpAggregate, error) {
	return e.target().LatencyByOp(ctx)
}

func (e *Engine) FetchThreadUtilizationRatio(ctx context.Context) ([]ThreadUtilRecord, error) {
	return e.target().ThreadUtilization(ctx, e.cfg.DeltaMillis())
}

func (e *Engine) FetchInflight(ctx context.Context) ([]InflightRecord, error) {
	return e.target().InflightDetector(ctx, e.cfg.ExpiryHorizonMillis())
}

// Run starts the rollover loop and blocks until ctx is cancelled. Every Δ
// it flips the current window; if the previous flip landed later than the
// configured rotation interval (the ticker stalled under scheduling
// pressure), it logs a warning before forcing the rollover anyway — a
// buffer's lifetime is upper-bounded, never open-ended.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting",
		"sample_interval", e.cfg.Window.SampleInterval.Duration,
		"expiry_horizon", e.cfg.Window.ExpiryHorizon.Duration,
		"db", e.cfg.Storage.Path,
	)

	ticker := time.NewTicker(e.cfg.Window.SampleInterval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return e.shutdown()
		case <-ticker.C:
			if since := time.Since(e.lastRollover); since > e.cfg.Window.RotationInterval.Duration {
				slog.Warn("buffer exceeded rotation interval, forcing rollover",
					"age", since, "bound", e.cfg.Window.RotationInterval.Duration)
			}
			if err := e.rollover(ctx); err != nil {
				slog.Error("rollover failed", "error", err)
			}
		}
	}
}

// rollover implements the full Rollover Controller sequence.
func (e *Engine) rollover(ctx context.Context) error {
	e.mu.Lock()
	prev := e.current
	nextW := prev.Window() + e.cfg.DeltaMillis()
	next, err := e.store.NewBuffer(ctx, nextW)
	if err != nil {
		e.mu.Unlock()
		return &RolloverError{Window: nextW, Err: err}
	}
	e.current = next
	e.lastRollover = time.Now()
	e.mu.Unlock()

	if _, err := RolloverInflight(ctx, prev, next, e.cfg.ExpiryHorizonMillis()); err != nil {
		// Insertion into next failed: invalidate it and swap in a fresh
		// empty buffer for the same window, accepting data loss over
		// inconsistency.
		slog.Warn("inflight insertion into next buffer failed, recreating empty", "window", nextW, "error", err)
		next.Drop(ctx)
		fresh, ferr := e.store.NewBuffer(ctx, nextW)
		if ferr != nil {
			return &RolloverError{Window: nextW, Err: ferr}
		}
		e.mu.Lock()
		if e.current == next {
			e.current = fresh
		}
		e.mu.Unlock()
	}

	e.publish(ctx, prev)

	if err := prev.Drop(ctx); err != nil {
		slog.Warn("drop buffer failed", "window", prev.Window(), "error", err)
	}
	return nil
}

// publish computes prev's aggregation views and hands them to subscribers.
// A failure computing any single view does not prevent publishing the
// others — each ViewError is logged and that view is omitted.
func (e *Engine) publish(ctx context.Context, prev *WindowBuffer) {
	snap := WindowSnapshot{Window: prev.Window()}

	lat, err := prev.Latency(ctx)
	if err != nil {
		slog.Warn("latency view failed", "window", prev.Window(), "error", err)
	}
	snap.Latency = lat

	byOp, err := prev.LatencyByOp(ctx)
	if err != nil {
		slog.Warn("latency_by_op view failed", "window", prev.Window(), "error", err)
	}
	snap.LatencyByOp = byOp

	util, err := prev.ThreadUtilization(ctx, e.cfg.DeltaMillis())
	if err != nil {
		slog.Warn("thread_utilization view failed", "window", prev.Window(), "error", err)
	}
	snap.ThreadUtil = util

	e.hub.Publish(TopicWindowClosed, &snap)

	if e.publisher != nil {
		if err := e.publisher.Publish(ctx, &snap); err != nil {
			slog.Warn("wire publication failed", "window", snap.Window, "error", err)
		}
	}
}

func (e *Engine) shutdown() error {
	slog.Info("engine shutting down")
	if err := e.store.Close(); err != nil {
		slog.Error("close store", "error", err)
		return err
	}
	return nil
}
