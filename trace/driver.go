package trace

import (
	"context"
	"database/sql/driver"
	"errors"
	"log/slog"
	"time"

	"github.com/hazyhaar/jurimon/kit"
)

// TracingDriver opens connections whose statements are timed, logged and
// handed to the Recorder set with SetStore.
type TracingDriver struct {
	driver.Driver
}

func (d *TracingDriver) Open(name string) (driver.Conn, error) {
	c, err := d.Driver.Open(name)
	if err != nil {
		return nil, err
	}
	return &tracedConn{Conn: c}, nil
}

// tracedConn runs statements straight on the sqlite connection when it can,
// so a one-shot Exec is observed once and not as a prepare plus a run.
type tracedConn struct {
	driver.Conn
}

var (
	_ driver.ExecerContext      = (*tracedConn)(nil)
	_ driver.QueryerContext     = (*tracedConn)(nil)
	_ driver.ConnPrepareContext = (*tracedConn)(nil)
	_ driver.ConnBeginTx        = (*tracedConn)(nil)
)

func (c *tracedConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	ex, ok := c.Conn.(driver.ExecerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	start := time.Now()
	res, err := ex.ExecContext(ctx, query, args)
	observe(ctx, "exec", query, start, err)
	return res, err
}

func (c *tracedConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	qr, ok := c.Conn.(driver.QueryerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	start := time.Now()
	rows, err := qr.QueryContext(ctx, query, args)
	observe(ctx, "query", query, start, err)
	return rows, err
}

func (c *tracedConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	var (
		st  driver.Stmt
		err error
	)
	if pc, ok := c.Conn.(driver.ConnPrepareContext); ok {
		st, err = pc.PrepareContext(ctx, query)
	} else {
		st, err = c.Conn.Prepare(query)
	}
	if err != nil {
		observe(ctx, "prepare", query, time.Now(), err)
		return nil, err
	}
	return &tracedStmt{Stmt: st, query: query}, nil
}

func (c *tracedConn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *tracedConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if bt, ok := c.Conn.(driver.ConnBeginTx); ok {
		return bt.BeginTx(ctx, opts)
	}
	return c.Conn.Begin() //nolint:staticcheck // fallback for drivers without BeginTx
}

// tracedStmt observes each run of a statement prepared on a tracedConn.
type tracedStmt struct {
	driver.Stmt
	query string
}

func (s *tracedStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	start := time.Now()
	var (
		res driver.Result
		err error
	)
	if ex, ok := s.Stmt.(driver.StmtExecContext); ok {
		res, err = ex.ExecContext(ctx, args)
	} else {
		res, err = s.Stmt.Exec(values(args)) //nolint:staticcheck
	}
	observe(ctx, "exec", s.query, start, err)
	return res, err
}

func (s *tracedStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	start := time.Now()
	var (
		rows driver.Rows
		err  error
	)
	if qr, ok := s.Stmt.(driver.StmtQueryContext); ok {
		rows, err = qr.QueryContext(ctx, args)
	} else {
		rows, err = s.Stmt.Query(values(args)) //nolint:staticcheck
	}
	observe(ctx, "query", s.query, start, err)
	return rows, err
}

func values(named []driver.NamedValue) []driver.Value {
	out := make([]driver.Value, len(named))
	for i, nv := range named {
		out[i] = nv.Value
	}
	return out
}

// observe logs one statement and queues it for the store. Statements outside
// any operation, such as schema setup, carry no transport.
func observe(ctx context.Context, kind, query string, start time.Time, err error) {
	if errors.Is(err, driver.ErrSkip) {
		return
	}
	elapsed := time.Since(start)

	level := slog.LevelDebug
	switch {
	case err != nil:
		level = slog.LevelError
	case elapsed >= SlowThreshold():
		level = slog.LevelWarn
	}
	rec := getStore()
	logger := slog.Default()
	if rec == nil && !logger.Enabled(ctx, level) {
		return
	}

	e := &Entry{
		TraceID:    kit.GetTraceID(ctx),
		Operation:  kit.GetOperation(ctx),
		Kind:       kind,
		Query:      query,
		DurationUs: elapsed.Microseconds(),
		Timestamp:  start.UnixMicro(),
	}
	if e.Operation != "" {
		e.Transport = kit.GetTransport(ctx)
	}
	if err != nil {
		e.Error = err.Error()
	}
	logger.LogAttrs(ctx, level, "sql statement", e.attrs()...)
	if rec != nil {
		rec.RecordAsync(e)
	}
}
