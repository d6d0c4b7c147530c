// CLAUDE:SUMMARY Opt-in SQL tracing for the cache database: a "sqlite-trace" driver that tags every statement with its jurimon operation.
// CLAUDE:EXPORTS DriverName, DefaultSlowThreshold, SetSlowThreshold, SlowThreshold, Entry, Recorder, SetStore, Store, NewStore, Filter, Recent, TracingDriver

// Package trace wraps modernc.org/sqlite so that every Exec and Query of the
// cache database is logged with the operation that issued it (an API route,
// an MCP tool or a poller task, read from the kit context) and, when a Store
// is set, written to a separate trace database.
//
//	traceDB, _ := dbopen.Open("data/traces.db")        // raw "sqlite" driver
//	store := trace.NewStore(traceDB, logger)
//	store.Init()
//	trace.SetStore(store)
//	trace.SetSlowThreshold(cfg.Trace.SlowThreshold)
//	db, _ := dbopen.Open("data/jurimon.db", dbopen.WithDriver(trace.DriverName))
//
// Without a Store the driver only logs: Debug normally, Warn past the slow
// threshold, Error on failure.
package trace

import (
	"database/sql"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	sqlite "modernc.org/sqlite"
)

// DriverName is the database/sql driver registered by this package.
const DriverName = "sqlite-trace"

// DefaultSlowThreshold applies until SetSlowThreshold is called.
const DefaultSlowThreshold = 100 * time.Millisecond

var slowThreshold atomic.Int64

// SetSlowThreshold sets the duration from which a statement logs at Warn.
// A non-positive d restores DefaultSlowThreshold.
func SetSlowThreshold(d time.Duration) {
	if d <= 0 {
		d = DefaultSlowThreshold
	}
	slowThreshold.Store(int64(d))
}

// SlowThreshold returns the current slow statement threshold.
func SlowThreshold() time.Duration {
	return time.Duration(slowThreshold.Load())
}

// Entry is one traced statement.
type Entry struct {
	TraceID    string `json:"trace_id,omitempty"`
	Operation  string `json:"operation,omitempty"` // kit operation, e.g. "judit_create_request"
	Transport  string `json:"transport,omitempty"` // set with Operation
	Kind       string `json:"kind"`                // "exec" or "query"
	Query      string `json:"query"`
	DurationUs int64  `json:"duration_us"`
	Error      string `json:"error,omitempty"`
	Timestamp  int64  `json:"timestamp"` // unix microseconds
}

func (e *Entry) attrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, 8)
	attrs = append(attrs,
		slog.String("component", "trace"),
		slog.String("kind", e.Kind),
		slog.String("query", e.Query),
		slog.Int64("duration_us", e.DurationUs))
	for _, kv := range [...][2]string{
		{"operation", e.Operation},
		{"transport", e.Transport},
		{"trace_id", e.TraceID},
		{"error", e.Error},
	} {
		if kv[1] != "" {
			attrs = append(attrs, slog.String(kv[0], kv[1]))
		}
	}
	return attrs
}

// Recorder persists entries without blocking the caller.
type Recorder interface {
	RecordAsync(e *Entry)
	Close() error
}

var (
	globalStore Recorder
	storeMu     sync.RWMutex
)

// SetStore sets the global recorder. nil turns persistence off.
func SetStore(s Recorder) {
	storeMu.Lock()
	globalStore = s
	storeMu.Unlock()
}

func getStore() Recorder {
	storeMu.RLock()
	defer storeMu.RUnlock()
	return globalStore
}

func init() {
	slowThreshold.Store(int64(DefaultSlowThreshold))
	sql.Register(DriverName, &TracingDriver{Driver: &sqlite.Driver{}})
}
