package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store owns the single embedded SQLite database shared across every
// WindowBuffer: the relational store is shared across buffers, and each
// buffer gets a uniquely-named table. SetMaxOpenConns(1) guarantees
// single-threaded access to the handle, so no mutex is needed around
// individual statements — the driver itself serializes them.
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the SQLite database backing the engine.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA cache_size = -2000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set cache_size: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// windowTable names the table backing a given window start, using the
// `shard_rq_<W>` convention.
func windowTable(w int64) string {
	return fmt.Sprintf("shard_rq_%d", w)
}

// WindowBuffer is a single window's Event Buffer: an append-only sequence
// of HalfEvents stored as rows in its own table. It is exclusively owned
// by the rollover controller, which creates and destroys it.
type WindowBuffer struct {
	store *Store
	w     int64
	table string
}

// NewBuffer creates a fresh table for window start w. It is not an error to
// create a buffer for a window that already has a table; CREATE TABLE IF
// NOT EXISTS makes buffer creation idempotent, which the rollover
// controller relies on when it must recreate a buffer after a failed
// rollover.
func (s *Store) NewBuffer(ctx context.Context, w int64) (*WindowBuffer, error) {
	table := windowTable(w)
	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ShardID   TEXT,
		IndexName TEXT,
		rid       TEXT NOT NULL,
		tid       TEXT NOT NULL,
		Operation TEXT NOT NULL,
		ShardRole TEXT,
		st        INTEGER,
		et        INTEGER,
		DocCount  INTEGER
	)`, table)
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create table %s: %w", table, err)
	}
	return &WindowBuffer{store: s, w: w, table: table}, nil
}

// Window returns the buffer's window start timestamp W.
func (b *WindowBuffer) Window() int64 { return b.w }

// Drop destroys the buffer's backing table. Safe to call once the buffer
// has handed its views to the rollover controller.
func (b *WindowBuffer) Drop(ctx context.Context) error {
	_, err := b.store.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", b.table))
	return err
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v int64, valid bool) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: valid}
}

// PutStart appends a start-only row.
func (b *WindowBuffer) PutStart(ctx context.Context, st int64, dims Dims) error {
	return b.insert(ctx, HalfEvent{Dims: dims, Start: st, HasStart: true})
}

// PutEnd appends an end-only row.
func (b *WindowBuffer) PutEnd(ctx context.Context, et int64, dims Dims) error {
	return b.insert(ctx, HalfEvent{Dims: dims, End: et, HasEnd: true})
}

// PutBatch appends a slice of half-events as a single transaction: if the
// transaction fails partway the whole batch is rolled back and reported as
// an IngestError, but nothing about PutBatch's atomicity is exposed to
// readers of other buffers.
func (b *WindowBuffer) PutBatch(ctx context.Context, events []HalfEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := b.store.db.BeginTx(ctx, nil)
	if err != nil {
		return &IngestError{Op: "put_batch", Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, b.insertSQL())
	if err != nil {
		return &IngestError{Op: "put_batch", Err: err}
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx, b.insertArgs(e)...); err != nil {
			return &IngestError{Op: "put_batch", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &IngestError{Op: "put_batch", Err: err}
	}
	return nil
}

func (b *WindowBuffer) insert(ctx context.Context, e HalfEvent) error {
	_, err := b.store.db.ExecContext(ctx, b.insertSQL(), b.insertArgs(e)...)
	if err != nil {
		slog.Warn("ingest failed", "table", b.table, "error", err)
		return &IngestError{Op: "put", Err: err}
	}
	return nil
}

func (b *WindowBuffer) insertSQL() string {
	return fmt.Sprintf(
		`INSERT INTO %s (ShardID, IndexName, rid, tid, Operation, ShardRole, st, et, DocCount)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, b.table)
}

func (b *WindowBuffer) insertArgs(e HalfEvent) []any {
	return []any{
		nullStr(e.ShardID), nullStr(e.IndexName), e.RequestID, e.ThreadID,
		e.Operation, nullStr(e.ShardRole),
		nullInt(e.Start, e.HasStart), nullInt(e.End, e.HasEnd),
		nullInt(e.DocCount, e.HasDoc),
	}
}

// FetchAll dumps the buffer's raw rows, unmodified. Debug/inspection only.
func (b *WindowBuffer) FetchAll(ctx context.Context) ([]HalfEvent, error) {
	rows, err := b.store.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT ShardID, IndexName, rid, tid, Operation, ShardRole, st, et, DocCount FROM %s`, b.table))
	if err != nil {
		return nil, &ViewError{View: "fetch_all", Err: err}
	}
	defer rows.Close()

	var out []HalfEvent
	for rows.Next() {
		var e HalfEvent
		var shard, idx, role sql.NullString
		var st, et, doc sql.NullInt64
		if err := rows.Scan(&shard, &idx, &e.RequestID, &e.ThreadID, &e.Operation, &role, &st, &et, &doc); err != nil {
			return nil, &ViewError{View: "fetch_all", Err: err}
		}
		e.ShardID, e.IndexName, e.ShardRole = shard.String, idx.String, role.String
		if st.Valid {
			e.Start, e.HasStart = st.Int64, true
		}
		if et.Valid {
			e.End, e.HasEnd = et.Int64, true
		}
		if doc.Valid {
			e.DocCount, e.HasDoc = doc.Int64, true
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
