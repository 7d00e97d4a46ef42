package protocol

import (
	"bytes"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

func TestHalfEventMsgRoundtrip(t *testing.T) {
	orig := HalfEventMsg{
		ShardID: "shard-0", IndexName: "products", RequestID: "r1", ThreadID: "t1",
		Operation: "search", ShardRole: "primary",
		Start: 1000, HasStart: true,
		DocCount: 42, HasDoc: true,
	}

	env, err := NewEnvelope(TypeHalfEvent, &orig)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteMsg(&buf, env); err != nil {
		t.Fatal(err)
	}

	got, err := ReadMsg(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != TypeHalfEvent {
		t.Fatalf("type = %q, want %q", got.Type, TypeHalfEvent)
	}

	var decoded HalfEventMsg
	if err := DecodeBody(got.Body, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded != orig {
		t.Errorf("got %+v, want %+v", decoded, orig)
	}
}

func TestHalfEventMsgEndOnly(t *testing.T) {
	orig := HalfEventMsg{
		RequestID: "r1", ThreadID: "t1", Operation: "fetch",
		End: 2000, HasEnd: true,
	}

	raw, err := msgpack.Marshal(&orig)
	if err != nil {
		t.Fatal(err)
	}

	var decoded HalfEventMsg
	if err := msgpack.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.HasStart {
		t.Error("HasStart should be false for an end-only half-event")
	}
	if !decoded.HasEnd || decoded.End != 2000 {
		t.Errorf("got %+v, want end 2000", decoded)
	}
}

func TestWindowSnapshotMsgRoundtrip(t *testing.T) {
	orig := WindowSnapshotMsg{
		Window: 1700000000000,
		Latency: []LatencyMsg{
			{ShardID: "shard-0", RequestID: "r1", ThreadID: "t1", Operation: "search", Start: 1000, End: 1200, Lat: 200},
		},
		LatencyByOp: []OpAggregateMsg{
			{ShardID: "shard-0", Operation: "search", SumLat: 200, AvgLat: 200, MinLat: 200, MaxLat: 200, Count: 1},
		},
		ThreadUtil: []ThreadUtilMsg{
			{RequestID: "r1", ThreadID: "t1", Operation: "search", ClippedLat: 200, ThreadTotal: 5000, Util: 0.04},
		},
	}

	env, err := NewEnvelope(TypeWindowSnapshot, &orig)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteMsg(&buf, env); err != nil {
		t.Fatal(err)
	}

	got, err := ReadMsg(&buf)
	if err != nil {
		t.Fatal(err)
	}

	var decoded WindowSnapshotMsg
	if err := DecodeBody(got.Body, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Window != orig.Window {
		t.Errorf("window = %d, want %d", decoded.Window, orig.Window)
	}
	if len(decoded.Latency) != 1 || decoded.Latency[0].RequestID != "r1" {
		t.Errorf("latency mismatch: %+v", decoded.Latency)
	}
	if len(decoded.LatencyByOp) != 1 || decoded.LatencyByOp[0].Count != 1 {
		t.Errorf("latency_by_op mismatch: %+v", decoded.LatencyByOp)
	}
	if len(decoded.ThreadUtil) != 1 || decoded.ThreadUtil[0].Util != 0.04 {
		t.Errorf("thread_util mismatch: %+v", decoded.ThreadUtil)
	}
}

func TestWindowSnapshotMsgOmitsEmptyViews(t *testing.T) {
	orig := WindowSnapshotMsg{Window: 1700000000000}

	raw, err := msgpack.Marshal(&orig)
	if err != nil {
		t.Fatal(err)
	}

	var decoded WindowSnapshotMsg
	if err := msgpack.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded.Latency) != 0 || len(decoded.LatencyByOp) != 0 || len(decoded.ThreadUtil) != 0 {
		t.Errorf("expected all views empty, got %+v", decoded)
	}
}
