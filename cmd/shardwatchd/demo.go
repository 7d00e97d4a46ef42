package main

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/avoss/shardwatch/internal/metrics"
)

var (
	demoShards     = []string{"shard-0", "shard-1", "shard-2"}
	demoIndices    = []string{"products", "logs"}
	demoOps        = []string{"search", "fetch", "merge"}
	demoShardRoles = []string{"primary", "replica"}
)

// runDemoProducer feeds the engine a plausible stream of half-events until
// ctx is cancelled: complete start/end pairs, occasional dropped ends
// (simulating a lost end-event so the request goes inflight), and occasional
// requests whose end arrives 2-5s after their start, which often puts the
// end in a later window than the start (straddling requests).
func runDemoProducer(ctx context.Context, eng *metrics.Engine, cfg *metrics.Config) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	rng := rand.New(rand.NewSource(1))
	threadIDs := make([]string, 8)
	for i := range threadIDs {
		threadIDs[i] = uuid.NewString()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			emitDemoRequest(ctx, eng, rng, threadIDs)
		}
	}
}

func emitDemoRequest(ctx context.Context, eng *metrics.Engine, rng *rand.Rand, threadIDs []string) {
	dims := metrics.Dims{
		ShardID:   demoShards[rng.Intn(len(demoShards))],
		IndexName: demoIndices[rng.Intn(len(demoIndices))],
		RequestID: uuid.NewString(),
		ThreadID:  threadIDs[rng.Intn(len(threadIDs))],
		Operation: demoOps[rng.Intn(len(demoOps))],
		ShardRole: demoShardRoles[rng.Intn(len(demoShardRoles))],
		DocCount:  int64(rng.Intn(500)),
		HasDoc:    true,
	}

	now := time.Now().UnixMilli()
	if err := eng.PutStart(ctx, now, dims); err != nil {
		slog.Warn("demo: put start failed", "error", err)
		return
	}

	switch {
	case rng.Float64() < 0.05:
		// Dropped end: this request stays inflight and is eventually
		// detected (or expires) by the inflight view.
		return
	case rng.Float64() < 0.15:
		// Straddling request: the end arrives 2-5s later, so unless the
		// start came early enough in its window, the end lands in a later
		// window than the start.
		go func() {
			delay := time.Duration(2+rng.Intn(4)) * time.Second
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			end := time.Now().UnixMilli()
			if err := eng.PutEnd(ctx, end, dims); err != nil {
				slog.Warn("demo: put end failed (straddling)", "error", err)
			}
		}()
	default:
		go func() {
			delay := time.Duration(5+rng.Intn(50)) * time.Millisecond
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			end := time.Now().UnixMilli()
			if err := eng.PutEnd(ctx, end, dims); err != nil {
				slog.Warn("demo: put end failed", "error", err)
			}
		}()
	}
}
