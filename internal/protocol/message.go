package protocol

import "github.com/vmihailenco/msgpack/v5"

// MsgType identifies the type of a protocol message.
type MsgType string

const (
	// TypeHalfEvent carries a single half-event from a remote producer
	// (a shard process not colocated with the engine) into the ingest path.
	TypeHalfEvent MsgType = "half_event"
	// TypeWindowSnapshot carries a closed window's aggregation views to a
	// downstream consumer.
	TypeWindowSnapshot MsgType = "window_snapshot"
)

// Envelope is the top-level wire message. Body is decoded in a second pass
// based on the Type field.
type Envelope struct {
	Type MsgType            `msgpack:"type"`
	Body msgpack.RawMessage `msgpack:"body"`
}

// HalfEventMsg is the wire form of a HalfEvent. Exactly one of
// HasStart/HasEnd is true; DocCount is meaningful only when HasDoc is set.
type HalfEventMsg struct {
	ShardID   string `msgpack:"shard_id,omitempty"`
	IndexName string `msgpack:"index_name,omitempty"`
	RequestID string `msgpack:"rid"`
	ThreadID  string `msgpack:"tid"`
	Operation string `msgpack:"op"`
	ShardRole string `msgpack:"role,omitempty"`
	Start     int64  `msgpack:"start,omitempty"`
	HasStart  bool   `msgpack:"has_start"`
	End       int64  `msgpack:"end,omitempty"`
	HasEnd    bool   `msgpack:"has_end"`
	DocCount  int64  `msgpack:"doc_count,omitempty"`
	HasDoc    bool   `msgpack:"has_doc,omitempty"`
}

// LatencyMsg is the wire form of a per-request latency row.
type LatencyMsg struct {
	ShardID   string `msgpack:"shard_id,omitempty"`
	IndexName string `msgpack:"index_name,omitempty"`
	RequestID string `msgpack:"rid"`
	ThreadID  string `msgpack:"tid"`
	Operation string `msgpack:"op"`
	ShardRole string `msgpack:"role,omitempty"`
	Start     int64  `msgpack:"start"`
	End       int64  `msgpack:"end"`
	Lat       int64  `msgpack:"lat"`
	DocCount  int64  `msgpack:"doc_count,omitempty"`
}

// OpAggregateMsg is the wire form of a per-operation aggregate row.
type OpAggregateMsg struct {
	ShardID   string  `msgpack:"shard_id,omitempty"`
	IndexName string  `msgpack:"index_name,omitempty"`
	Operation string  `msgpack:"op"`
	ShardRole string  `msgpack:"role,omitempty"`
	SumLat    int64   `msgpack:"sum_lat"`
	AvgLat    float64 `msgpack:"avg_lat"`
	MinLat    int64   `msgpack:"min_lat"`
	MaxLat    int64   `msgpack:"max_lat"`
	Count     int64   `msgpack:"count"`
	SumDocs   int64   `msgpack:"sum_docs,omitempty"`
}

// ThreadUtilMsg is the wire form of a thread-utilization row.
type ThreadUtilMsg struct {
	RequestID   string  `msgpack:"rid"`
	ThreadID    string  `msgpack:"tid"`
	Operation   string  `msgpack:"op"`
	ClippedLat  int64   `msgpack:"clipped_lat"`
	ThreadTotal int64   `msgpack:"thread_total"`
	Util        float64 `msgpack:"util"`
}

// WindowSnapshotMsg is the wire form of a closed window's published views.
type WindowSnapshotMsg struct {
	Window      int64            `msgpack:"window"`
	Latency     []LatencyMsg     `msgpack:"latency,omitempty"`
	LatencyByOp []OpAggregateMsg `msgpack:"latency_by_op,omitempty"`
	ThreadUtil  []ThreadUtilMsg  `msgpack:"thread_util,omitempty"`
}
