package metrics

import (
	"context"
	"database/sql"
	"fmt"
)

// groupByRidOpCTE is the Coalescer: group by (rid, op) and take the
// null-tolerant max of every other column. Every view below is built as a
// SQL composition on top of this one common-table-expression, the way the
// teacher composes downsampling queries on top of raw metric tables.
func groupByRidOpCTE(table string) string {
	return fmt.Sprintf(`g AS (
		SELECT rid, Operation,
			MAX(ShardID) AS ShardID, MAX(IndexName) AS IndexName,
			MAX(tid) AS tid, MAX(ShardRole) AS ShardRole,
			MAX(st) AS st, MAX(et) AS et, MAX(DocCount) AS DocCount
		FROM %s
		GROUP BY rid, Operation
	)`, table)
}

func scanCoalesced(rows *sql.Rows) (CoalescedRecord, error) {
	var c CoalescedRecord
	var shard, idx, role sql.NullString
	var st, et, doc sql.NullInt64
	if err := rows.Scan(&c.RequestID, &c.Operation, &shard, &idx, &c.ThreadID, &role, &st, &et, &doc); err != nil {
		return c, err
	}
	c.ShardID, c.IndexName, c.ShardRole = shard.String, idx.String, role.String
	if st.Valid {
		c.Start, c.HasStart = st.Int64, true
	}
	if et.Valid {
		c.End, c.HasEnd = et.Int64, true
	}
	if doc.Valid {
		c.DocCount, c.HasDoc = doc.Int64, true
	}
	return c, nil
}

// GroupByRidOp returns the Coalescer view: at most one row per (rid, op).
func (b *WindowBuffer) GroupByRidOp(ctx context.Context) ([]CoalescedRecord, error) {
	query := fmt.Sprintf(`WITH %s SELECT rid, Operation, ShardID, IndexName, tid, ShardRole, st, et, DocCount FROM g`,
		groupByRidOpCTE(b.table))
	rows, err := b.store.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &ViewError{View: "group_by_rid_op", Err: err}
	}
	defer rows.Close()

	var out []CoalescedRecord
	for rows.Next() {
		c, err := scanCoalesced(rows)
		if err != nil {
			return nil, &ViewError{View: "group_by_rid_op", Err: err}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// clippedCTE is the Window Clipper: clamp st/et to [W, W+Δ], using
// SQLite's multi-argument max()/min() scalar functions directly —
// `st' = max(W, min(W+Δ, coalesce(max(st), W)))` and
// `et' = min(W+Δ, max(W, coalesce(max(et), W+Δ)))`, so a request lying
// wholly on one side of the window collapses to zero width. Malformed
// records (et < st) are left out.
func clippedCTE(table string, w, end int64) (string, []any) {
	cte := fmt.Sprintf(`%s,
	clipped AS (
		SELECT rid, Operation, ShardID, IndexName, tid, ShardRole, DocCount,
			max(?, min(?, coalesce(st, ?))) AS st2,
			min(?, max(?, coalesce(et, ?))) AS et2
		FROM g
		WHERE st IS NULL OR et IS NULL OR et >= st
	)`, groupByRidOpCTE(table))
	return cte, []any{w, end, w, end, w, end}
}

func scanClipped(rows *sql.Rows) (ClippedRecord, error) {
	var c ClippedRecord
	var shard, idx, role sql.NullString
	var doc sql.NullInt64
	if err := rows.Scan(&c.RequestID, &c.Operation, &shard, &idx, &c.ThreadID, &role, &doc, &c.ClippedStart, &c.ClippedEnd); err != nil {
		return c, err
	}
	c.ShardID, c.IndexName, c.ShardRole = shard.String, idx.String, role.String
	if doc.Valid {
		c.DocCount, c.HasDoc = doc.Int64, true
	}
	c.ClippedLat = c.ClippedEnd - c.ClippedStart
	return c, nil
}

// TimeSpentPerRequest is the clipped-window view with lat' attached: every
// row has W <= st' <= et' <= W+Δ.
func (b *WindowBuffer) TimeSpentPerRequest(ctx context.Context, delta int64) ([]ClippedRecord, error) {
	cte, args := clippedCTE(b.table, b.w, b.w+delta)
	query := fmt.Sprintf(`WITH %s
		SELECT rid, Operation, ShardID, IndexName, tid, ShardRole, DocCount, st2, et2
		FROM clipped`, cte)
	rows, err := b.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &ViewError{View: "time_spent_per_request", Err: err}
	}
	defer rows.Close()

	var out []ClippedRecord
	for rows.Next() {
		c, err := scanClipped(rows)
		if err != nil {
			return nil, &ViewError{View: "time_spent_per_request", Err: err}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Latency is the per-request latency view: complete, well-formed records
// only (st <= et), lat = et - st, so lat is always non-negative.
func (b *WindowBuffer) Latency(ctx context.Context) ([]LatencyRecord, error) {
	query := fmt.Sprintf(`WITH %s
		SELECT rid, Operation, ShardID, IndexName, tid, ShardRole, st, et, (et - st) AS lat, DocCount
		FROM g
		WHERE st IS NOT NULL AND et IS NOT NULL AND et >= st`, groupByRidOpCTE(b.table))
	rows, err := b.store.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &ViewError{View: "latency", Err: err}
	}
	defer rows.Close()

	var out []LatencyRecord
	for rows.Next() {
		var l LatencyRecord
		var shard, idx, role sql.NullString
		var doc sql.NullInt64
		if err := rows.Scan(&l.RequestID, &l.Operation, &shard, &idx, &l.ThreadID, &role, &l.Start, &l.End, &l.Lat, &doc); err != nil {
			return nil, &ViewError{View: "latency", Err: err}
		}
		l.ShardID, l.IndexName, l.ShardRole = shard.String, idx.String, role.String
		if doc.Valid {
			l.DocCount, l.HasDoc = doc.Int64, true
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// LatencyByOp is the per-(shard,index,op,role) aggregate view. Empty
// groups never appear, so division by zero in AvgLat cannot occur.
func (b *WindowBuffer) LatencyByOp(ctx context.Context) ([]OpAggregate, error) {
	query := fmt.Sprintf(`WITH %s,
		lat AS (
			SELECT ShardID, IndexName, Operation, ShardRole, (et - st) AS lat, DocCount
			FROM g
			WHERE st IS NOT NULL AND et IS NOT NULL AND et >= st
		)
		SELECT ShardID, IndexName, Operation, ShardRole,
			SUM(lat), AVG(lat), MIN(lat), MAX(lat), COUNT(*), SUM(COALESCE(DocCount, 0))
		FROM lat
		GROUP BY ShardID, IndexName, Operation, ShardRole`, groupByRidOpCTE(b.table))
	rows, err := b.store.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &ViewError{View: "latency_by_op", Err: err}
	}
	defer rows.Close()

	var out []OpAggregate
	for rows.Next() {
		var a OpAggregate
		var shard, idx, role sql.NullString
		if err := rows.Scan(&shard, &idx, &a.Operation, &role,
			&a.SumLat, &a.AvgLat, &a.MinLat, &a.MaxLat, &a.Count, &a.SumDocs); err != nil {
			return nil, &ViewError{View: "latency_by_op", Err: err}
		}
		a.ShardID, a.IndexName, a.ShardRole = shard.String, idx.String, role.String
		out = append(out, a)
	}
	return out, rows.Err()
}

// ThreadUtilization is the thread-utilization view: each request's share
// of its thread's total clipped latency within the window. Threads whose
// ttime is 0 (every contributing request clipped to zero width) are
// excluded rather than emitting NaN; see DESIGN.md for the rationale.
func (b *WindowBuffer) ThreadUtilization(ctx context.Context, delta int64) ([]ThreadUtilRecord, error) {
	cte, args := clippedCTE(b.table, b.w, b.w+delta)
	query := fmt.Sprintf(`WITH %s,
		cl AS (
			SELECT *, (et2 - st2) AS lat2 FROM clipped
		),
		totals AS (
			SELECT tid, SUM(lat2) AS ttime FROM cl GROUP BY tid
		)
		SELECT cl.rid, cl.Operation, cl.ShardID, cl.IndexName, cl.tid, cl.ShardRole, cl.DocCount,
			cl.st2, cl.et2, cl.lat2, totals.ttime
		FROM cl JOIN totals ON cl.tid = totals.tid
		WHERE totals.ttime > 0`, cte)
	rows, err := b.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &ViewError{View: "thread_utilization", Err: err}
	}
	defer rows.Close()

	var out []ThreadUtilRecord
	for rows.Next() {
		var u ThreadUtilRecord
		var shard, idx, role sql.NullString
		var doc sql.NullInt64
		if err := rows.Scan(&u.RequestID, &u.Operation, &shard, &idx, &u.ThreadID, &role, &doc,
			&u.ClippedStart, &u.ClippedEnd, &u.ClippedLat, &u.ThreadTotal); err != nil {
			return nil, &ViewError{View: "thread_utilization", Err: err}
		}
		u.ShardID, u.IndexName, u.ShardRole = shard.String, idx.String, role.String
		if doc.Valid {
			u.DocCount, u.HasDoc = doc.Int64, true
		}
		u.Util = float64(u.ClippedLat) / float64(u.ThreadTotal)
		out = append(out, u)
	}
	return out, rows.Err()
}

// InflightDetector identifies requests that started but did not end and
// are still plausibly running, under the rule that a thread runs at most
// one request at a time: at most one row per thread, and no returned row
// has st <= W - expiryHorizon.
func (b *WindowBuffer) InflightDetector(ctx context.Context, expiryHorizon int64) ([]InflightRecord, error) {
	query := fmt.Sprintf(`WITH %s,
		latest AS (
			SELECT tid, MAX(st) AS latest FROM g WHERE st IS NOT NULL GROUP BY tid
		)
		SELECT g.rid, g.Operation, g.ShardID, g.IndexName, g.tid, g.ShardRole, g.st, g.DocCount
		FROM g JOIN latest ON g.tid = latest.tid
		WHERE g.st IS NOT NULL AND g.et IS NULL
			AND g.st > ?
			AND (g.st > ? OR g.st = latest.latest)
			AND NOT EXISTS (
				SELECT 1 FROM g g2
				WHERE g2.tid = g.tid AND g2.et IS NULL AND g2.st > g.st
			)`, groupByRidOpCTE(b.table))
	rows, err := b.store.db.QueryContext(ctx, query, b.w-expiryHorizon, b.w)
	if err != nil {
		return nil, &ViewError{View: "inflight", Err: err}
	}
	defer rows.Close()

	var out []InflightRecord
	for rows.Next() {
		var r InflightRecord
		var shard, idx, role sql.NullString
		var doc sql.NullInt64
		if err := rows.Scan(&r.RequestID, &r.Operation, &shard, &idx, &r.ThreadID, &role, &r.Start, &doc); err != nil {
			return nil, &ViewError{View: "inflight", Err: err}
		}
		r.ShardID, r.IndexName, r.ShardRole = shard.String, idx.String, role.String
		if doc.Valid {
			r.DocCount, r.HasDoc = doc.Int64, true
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
