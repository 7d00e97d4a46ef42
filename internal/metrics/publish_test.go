package metrics

import (
	"bytes"
	"context"
	"testing"

	"github.com/avoss/shardwatch/internal/protocol"
)

func TestPublisherPublishRoundtrip(t *testing.T) {
	var buf bytes.Buffer
	p := NewPublisher(&buf)

	snap := &WindowSnapshot{
		Window:      1000,
		Latency:     []LatencyRecord{{Dims: Dims{RequestID: "r1", ThreadID: "t1", Operation: "search"}, Start: 0, End: 100, Lat: 100}},
		LatencyByOp: []OpAggregate{{Operation: "search", SumLat: 100, AvgLat: 100, MinLat: 100, MaxLat: 100, Count: 1}},
		ThreadUtil:  []ThreadUtilRecord{{Dims: Dims{RequestID: "r1", ThreadID: "t1"}, ClippedLat: 100, ThreadTotal: 100, Util: 1}},
	}

	if err := p.Publish(context.Background(), snap); err != nil {
		t.Fatal(err)
	}

	env, err := protocol.ReadMsg(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if env.Type != protocol.TypeWindowSnapshot {
		t.Fatalf("type = %q, want %q", env.Type, protocol.TypeWindowSnapshot)
	}

	var msg protocol.WindowSnapshotMsg
	if err := protocol.DecodeBody(env.Body, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Window != 1000 {
		t.Errorf("window = %d, want 1000", msg.Window)
	}
	if len(msg.Latency) != 1 || msg.Latency[0].RequestID != "r1" {
		t.Errorf("latency mismatch: %+v", msg.Latency)
	}
}

func TestHalfEventFromMsg(t *testing.T) {
	m := protocol.HalfEventMsg{
		ShardID: "shard-0", RequestID: "r1", ThreadID: "t1", Operation: "search",
		Start: 100, HasStart: true, DocCount: 5, HasDoc: true,
	}
	e := HalfEventFromMsg(m)
	if e.ShardID != "shard-0" || e.Start != 100 || !e.HasStart || e.HasEnd {
		t.Errorf("converted event = %+v", e)
	}
}
