package metrics

import (
	"context"
	"log/slog"
)

// RolloverInflight detects prev's still-open requests and inserts them
// into next as start-only events, preserving their original start
// timestamp. It is exported standalone (rather than folded into
// Engine.rollover) so both the Engine and tests can exercise the migration
// step independent of the ticking loop.
//
// On detection failure, inflight state for this window is simply forfeited
// (an empty slice is returned, no error) — ingest must never be blocked by
// a view failure. On insertion failure, the caller is responsible for
// invalidating next and creating a fresh empty buffer, accepting data loss
// over inconsistency; RolloverInflight reports that failure as a
// RolloverError so the caller can react.
func RolloverInflight(ctx context.Context, prev, next *WindowBuffer, expiryHorizon int64) ([]InflightRecord, error) {
	inflight, err := prev.InflightDetector(ctx, expiryHorizon)
	if err != nil {
		slog.Warn("inflight detection failed, forfeiting inflight state", "window", prev.Window(), "error", err)
		return nil, nil
	}
	if len(inflight) == 0 {
		return nil, nil
	}

	events := make([]HalfEvent, len(inflight))
	for i, r := range inflight {
		events[i] = HalfEvent{Dims: r.Dims, Start: r.Start, HasStart: true}
	}
	if err := next.PutBatch(ctx, events); err != nil {
		return nil, &RolloverError{Window: next.Window(), Err: err}
	}
	return inflight, nil
}
