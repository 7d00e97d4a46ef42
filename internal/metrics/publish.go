package metrics

import (
	"context"
	"io"

	"github.com/avoss/shardwatch/internal/protocol"
)

// Publisher writes WindowSnapshots to a downstream consumer across a wire
// boundary, using the length-prefixed msgpack envelope format in
// internal/protocol. It is optional: an Engine with no Publisher attached
// still publishes snapshots in-process via its Hub.
type Publisher struct {
	w io.Writer
}

// NewPublisher wraps any io.Writer (a unix socket, a pipe, a file) as a
// snapshot sink.
func NewPublisher(w io.Writer) *Publisher { return &Publisher{w: w} }

// Publish encodes a WindowSnapshot and writes it as a single envelope.
func (p *Publisher) Publish(_ context.Context, snap *WindowSnapshot) error {
	msg := toSnapshotMsg(snap)
	env, err := protocol.NewEnvelope(protocol.TypeWindowSnapshot, msg)
	if err != nil {
		return err
	}
	return protocol.WriteMsg(p.w, env)
}

func toSnapshotMsg(snap *WindowSnapshot) protocol.WindowSnapshotMsg {
	msg := protocol.WindowSnapshotMsg{Window: snap.Window}

	msg.Latency = make([]protocol.LatencyMsg, len(snap.Latency))
	for i, l := range snap.Latency {
		msg.Latency[i] = protocol.LatencyMsg{
			ShardID: l.ShardID, IndexName: l.IndexName, RequestID: l.RequestID,
			ThreadID: l.ThreadID, Operation: l.Operation, ShardRole: l.ShardRole,
			Start: l.Start, End: l.End, Lat: l.Lat, DocCount: l.DocCount,
		}
	}

	msg.LatencyByOp = make([]protocol.OpAggregateMsg, len(snap.LatencyByOp))
	for i, a := range snap.LatencyByOp {
		msg.LatencyByOp[i] = protocol.OpAggregateMsg{
			ShardID: a.ShardID, IndexName: a.IndexName, Operation: a.Operation, ShardRole: a.ShardRole,
			SumLat: a.SumLat, AvgLat: a.AvgLat, MinLat: a.MinLat, MaxLat: a.MaxLat,
			Count: a.Count, SumDocs: a.SumDocs,
		}
	}

	msg.ThreadUtil = make([]protocol.ThreadUtilMsg, len(snap.ThreadUtil))
	for i, u := range snap.ThreadUtil {
		msg.ThreadUtil[i] = protocol.ThreadUtilMsg{
			RequestID: u.RequestID, ThreadID: u.ThreadID, Operation: u.Operation,
			ClippedLat: u.ClippedLat, ThreadTotal: u.ThreadTotal, Util: u.Util,
		}
	}

	return msg
}

// HalfEventFromMsg converts a wire HalfEventMsg (e.g. from a remote shard
// process) into the engine's internal HalfEvent.
func HalfEventFromMsg(m protocol.HalfEventMsg) HalfEvent {
	return HalfEvent{
		Dims: Dims{
			ShardID: m.ShardID, IndexName: m.IndexName, RequestID: m.RequestID,
			ThreadID: m.ThreadID, Operation: m.Operation, ShardRole: m.ShardRole,
			DocCount: m.DocCount, HasDoc: m.HasDoc,
		},
		Start: m.Start, HasStart: m.HasStart,
		End: m.End, HasEnd: m.HasEnd,
	}
}
