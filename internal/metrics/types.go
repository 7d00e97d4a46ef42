package metrics

import "fmt"

// Dims carries the dimension columns of a HalfEvent. Every field except
// RequestID, ThreadID, and Operation may be left zero on a partial event;
// the buffer stores zero values as nulls would be stored in a relational
// engine (see the TimeSpentPerRequest / GroupByRidOp coalescing rules).
type Dims struct {
	ShardID   string
	IndexName string
	RequestID string
	ThreadID  string
	Operation string
	ShardRole string
	DocCount  int64
	HasDoc    bool // DocCount is meaningful only when HasDoc is set
}

// HalfEvent is a single start-only or end-only row: exactly one of
// Start/End is populated.
type HalfEvent struct {
	Dims
	Start    int64 // epoch-ms, zero if this is an end-only row
	HasStart bool
	End      int64 // epoch-ms, zero if this is a start-only row
	HasEnd   bool
}

// CoalescedRecord is one row per (RequestID, Operation), produced by
// GroupByRidOp: the null-tolerant max-merge of every HalfEvent sharing that
// key.
type CoalescedRecord struct {
	Dims
	Start    int64
	HasStart bool
	End      int64
	HasEnd   bool
}

// Complete reports whether both ends of the request are present.
func (c CoalescedRecord) Complete() bool {
	return c.HasStart && c.HasEnd
}

// Malformed reports whether the record has its end before its start; such
// records are excluded from latency views.
func (c CoalescedRecord) Malformed() bool {
	return c.Complete() && c.End < c.Start
}

// LatencyRecord is a CoalescedRecord restricted to complete, well-formed
// requests, with its latency attached.
type LatencyRecord struct {
	Dims
	Start int64
	End   int64
	Lat   int64
}

// OpAggregate is a per-(shard,index,op,role) aggregate over LatencyRecord.
type OpAggregate struct {
	ShardID   string
	IndexName string
	Operation string
	ShardRole string
	SumLat    int64
	AvgLat    float64
	MinLat    int64
	MaxLat    int64
	Count     int64
	SumDocs   int64
}

// ClippedRecord is a CoalescedRecord clamped to a window's bounds.
type ClippedRecord struct {
	Dims
	ClippedStart int64
	ClippedEnd   int64
	ClippedLat   int64
}

// ThreadUtilRecord is a ClippedRecord with its share of the owning thread's
// total clipped latency attached.
type ThreadUtilRecord struct {
	Dims
	ClippedStart int64
	ClippedEnd   int64
	ClippedLat   int64
	ThreadTotal  int64
	Util         float64
}

// InflightRecord is a candidate for rollover into the next window:
// dimensions plus a start timestamp and no end.
type InflightRecord struct {
	Dims
	Start int64
}

// --- Error taxonomy ---

// IngestError wraps a storage-layer failure on insert. The event is
// dropped and ingest continues; nothing retries it. Single-row inserts log
// the failure, and every insert path returns this error to its caller.
type IngestError struct {
	Op  string
	Err error
}

func (e *IngestError) Error() string { return fmt.Sprintf("ingest: %s: %v", e.Op, e.Err) }
func (e *IngestError) Unwrap() error { return e.Err }

// ViewError wraps a failure computing a derived view. The view returns an
// empty result set; the caller logs and proceeds to the next view.
type ViewError struct {
	View string
	Err  error
}

func (e *ViewError) Error() string { return fmt.Sprintf("view %s: %v", e.View, e.Err) }
func (e *ViewError) Unwrap() error { return e.Err }

// RolloverError wraps a failure creating or populating the next window's
// buffer. The next buffer is recreated empty; inflight state is forfeited
// for one window.
type RolloverError struct {
	Window int64
	Err    error
}

func (e *RolloverError) Error() string {
	return fmt.Sprintf("rollover to window %d: %v", e.Window, e.Err)
}
func (e *RolloverError) Unwrap() error { return e.Err }

// InvariantViolation records a detected inconsistency (more than two
// half-events for a (rid, op) with conflicting dimensions, for example).
// Values are still reconciled by the max rule; processing continues.
type InvariantViolation struct {
	Detail string
}

func (e *InvariantViolation) Error() string { return "invariant violation: " + e.Detail }
