package trace

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Schema for the statement_traces table.
const Schema = `
CREATE TABLE IF NOT EXISTS statement_traces (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	trace_id    TEXT NOT NULL DEFAULT '',
	operation   TEXT NOT NULL DEFAULT '',
	transport   TEXT NOT NULL DEFAULT '',
	kind        TEXT NOT NULL,
	query       TEXT NOT NULL,
	duration_us INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	ts          INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_statement_traces_ts ON statement_traces(ts);
CREATE INDEX IF NOT EXISTS idx_statement_traces_op ON statement_traces(operation, ts) WHERE operation != '';
CREATE INDEX IF NOT EXISTS idx_statement_traces_tid ON statement_traces(trace_id) WHERE trace_id != '';
`

const (
	storeBuffer = 1024
	storeBatch  = 64
	flushEvery  = time.Second
)

// Store writes entries to statement_traces in batches from a background
// goroutine. Its db must use the raw "sqlite" driver, or every insert would
// trace itself.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	ch     chan *Entry
	done   chan struct{}
	once   sync.Once
}

// NewStore starts the flush goroutine. A nil logger uses slog.Default.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		db:     db,
		logger: logger,
		ch:     make(chan *Entry, storeBuffer),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

// Init creates the statement_traces table if it doesn't exist.
func (s *Store) Init() error {
	_, err := s.db.Exec(Schema)
	return err
}

// RecordAsync queues an entry. Drops it when the buffer is full.
func (s *Store) RecordAsync(e *Entry) {
	select {
	case s.ch <- e:
	default:
	}
}

// Close drains the buffer and stops the flush goroutine.
func (s *Store) Close() error {
	s.once.Do(func() {
		close(s.ch)
		<-s.done
	})
	return nil
}

// Prune deletes entries older than before. The poller runs it with the
// heartbeat retention.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM statement_traces WHERE ts < ?`, before.UnixMicro())
	if err != nil {
		return 0, fmt.Errorf("trace: prune: %w", err)
	}
	return res.RowsAffected()
}

// Filter selects entries for Recent.
type Filter struct {
	MinDuration time.Duration
	Operation   string // exact match; empty for all
	Limit       int    // default 50
}

// Recent returns the newest entries matching f, newest first.
func Recent(ctx context.Context, db *sql.DB, f Filter) ([]Entry, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	q := `SELECT trace_id, operation, transport, kind, query, duration_us, error, ts
		FROM statement_traces WHERE duration_us >= ?`
	args := []any{f.MinDuration.Microseconds()}
	if f.Operation != "" {
		q += ` AND operation = ?`
		args = append(args, f.Operation)
	}
	q += ` ORDER BY ts DESC, id DESC LIMIT ?`
	args = append(args, f.Limit)

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("trace: recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.TraceID, &e.Operation, &e.Transport, &e.Kind,
			&e.Query, &e.DurationUs, &e.Error, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("trace: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) run() {
	defer close(s.done)

	batch := make([]*Entry, 0, storeBatch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.insert(batch); err != nil {
			s.logger.Error("trace: flush", "entries", len(batch), "error", err)
		}
		batch = batch[:0]
	}
	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-s.ch:
			if !ok {
				flush()
				return
			}
			if batch = append(batch, e); len(batch) >= storeBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// insert writes a batch as one multi-row INSERT.
func (s *Store) insert(batch []*Entry) error {
	const cols = 8
	var b strings.Builder
	b.WriteString(`INSERT INTO statement_traces
		(trace_id, operation, transport, kind, query, duration_us, error, ts) VALUES `)
	args := make([]any, 0, len(batch)*cols)
	for i, e := range batch {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString("(?,?,?,?,?,?,?,?)")
		args = append(args, e.TraceID, e.Operation, e.Transport, e.Kind,
			e.Query, e.DurationUs, e.Error, e.Timestamp)
	}
	_, err := s.db.Exec(b.String(), args...)
	return err
}
