package trace

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/hazyhaar/jurimon/kit"

	_ "modernc.org/sqlite"
)

var quiet = slog.New(slog.DiscardHandler)

func setupTraceStore(t *testing.T) (*sql.DB, *Store) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	store := NewStore(db, quiet)
	if err := store.Init(); err != nil {
		t.Fatal(err)
	}
	return db, store
}

func TestStore_CloseFlushes(t *testing.T) {
	db, store := setupTraceStore(t)
	for i := range 100 {
		store.RecordAsync(&Entry{
			TraceID:    "abcd1234",
			Kind:       "query",
			Query:      "SELECT 1",
			DurationUs: int64(i),
			Timestamp:  time.Now().UnixMicro(),
		})
	}
	store.Close()

	var count int
	db.QueryRow("SELECT COUNT(*) FROM statement_traces WHERE trace_id='abcd1234'").Scan(&count)
	if count != 100 {
		t.Fatalf("trace count: got %d, want 100", count)
	}
}

func TestRecentAndPrune(t *testing.T) {
	// WHAT: Recent filters by duration newest first; Prune drops old rows.
	// WHY: The traces command answers "which queries were slow lately".
	db, store := setupTraceStore(t)
	base := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	store.RecordAsync(&Entry{Kind: "exec", Query: "old slow", DurationUs: 200_000, Timestamp: base.Add(-48 * time.Hour).UnixMicro()})
	store.RecordAsync(&Entry{Kind: "query", Query: "fast", DurationUs: 50, Timestamp: base.UnixMicro()})
	store.RecordAsync(&Entry{Kind: "query", Query: "new slow", DurationUs: 150_000, Error: "busy",
		Operation: "judit_request_view", Transport: "mcp", Timestamp: base.Add(time.Second).UnixMicro()})
	store.Close()
	ctx := context.Background()

	slow, err := Recent(ctx, db, Filter{MinDuration: DefaultSlowThreshold})
	if err != nil {
		t.Fatal(err)
	}
	if len(slow) != 2 || slow[0].Query != "new slow" || slow[0].Error != "busy" {
		t.Fatalf("slow = %+v", slow)
	}
	byOp, err := Recent(ctx, db, Filter{Operation: "judit_request_view"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byOp) != 1 || byOp[0].Transport != "mcp" {
		t.Fatalf("by operation = %+v", byOp)
	}

	n, err := store.Prune(ctx, base.Add(-time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("prune: n=%d err=%v", n, err)
	}
	all, _ := Recent(ctx, db, Filter{Limit: 10})
	if len(all) != 2 {
		t.Errorf("after prune: %d entries, want 2", len(all))
	}
}

func TestDriverRegistered(t *testing.T) {
	if !slices.Contains(sql.Drivers(), DriverName) {
		t.Fatalf("%s driver not registered", DriverName)
	}
}

func TestTracingDriver_RecordsWithTraceID(t *testing.T) {
	// WHAT: Statements through the tracing driver land in the store with the request trace ID.
	// WHY: A slow API call is matched to its SQL through X-Trace-ID.
	db, err := sql.Open(DriverName, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	defer db.Close()

	traceDB, store := setupTraceStore(t)
	SetStore(store)
	defer SetStore(nil)

	ctx := kit.WithTraceID(context.Background(), "feedface")
	if _, err := db.ExecContext(ctx, "CREATE TABLE t (id INTEGER)"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ExecContext(ctx, "INSERT INTO t VALUES (1)"); err != nil {
		t.Fatal(err)
	}
	var val int
	if err := db.QueryRowContext(ctx, "SELECT id FROM t").Scan(&val); err != nil || val != 1 {
		t.Fatalf("query: val=%d err=%v", val, err)
	}
	store.Close()

	var count int
	traceDB.QueryRow("SELECT COUNT(*) FROM statement_traces WHERE trace_id='feedface'").Scan(&count)
	if count < 3 {
		t.Fatalf("traced statements = %d, want >= 3", count)
	}
}

func TestSetStore(t *testing.T) {
	_, store := setupTraceStore(t)
	SetStore(store)
	if getStore() != Recorder(store) {
		t.Fatal("getStore did not return the set store")
	}
	SetStore(nil)
	if getStore() != nil {
		t.Fatal("expected nil after reset")
	}
	store.Close()
}

func TestTracingDriver_TagsOperation(t *testing.T) {
	// WHAT: Statements carry the kit operation and transport; setup statements carry neither.
	// WHY: The traces command answers "which API call or poller task ran this query".
	db, err := sql.Open(DriverName, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	defer db.Close()

	traceDB, store := setupTraceStore(t)
	SetStore(store)
	defer SetStore(nil)

	if _, err := db.Exec("CREATE TABLE pubs (id TEXT)"); err != nil {
		t.Fatal(err)
	}
	ctx := kit.WithOperation(kit.WithTransport(context.Background(), "poller"), "poll_trackings")
	if _, err := db.ExecContext(ctx, "INSERT INTO pubs VALUES (?)", "p-1"); err != nil {
		t.Fatal(err)
	}
	stmt, err := db.PrepareContext(ctx, "SELECT id FROM pubs WHERE id = ?")
	if err != nil {
		t.Fatal(err)
	}
	var id string
	if err := stmt.QueryRowContext(ctx, "p-1").Scan(&id); err != nil || id != "p-1" {
		t.Fatalf("prepared query: id=%q err=%v", id, err)
	}
	stmt.Close()
	store.Close()

	entries, err := Recent(context.Background(), traceDB, Filter{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	kinds := map[string]Entry{}
	for _, e := range entries {
		kinds[e.Query] = e
	}
	setup := kinds["CREATE TABLE pubs (id TEXT)"]
	if setup.Kind != "exec" || setup.Operation != "" || setup.Transport != "" {
		t.Errorf("setup entry = %+v", setup)
	}
	insert := kinds["INSERT INTO pubs VALUES (?)"]
	if insert.Operation != "poll_trackings" || insert.Transport != "poller" {
		t.Errorf("insert entry = %+v", insert)
	}
	sel := kinds["SELECT id FROM pubs WHERE id = ?"]
	if sel.Kind != "query" || sel.Operation != "poll_trackings" {
		t.Errorf("prepared select entry = %+v", sel)
	}
}

func TestTracingDriver_SlowThreshold(t *testing.T) {
	// WHAT: Statements at or past the configured threshold log at Warn with their operation.
	// WHY: trace.slow_threshold decides what shows up in a production log at info level.
	db, err := sql.Open(DriverName, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	defer db.Close()
	if err := db.Ping(); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	defer slog.SetDefault(prev)

	ctx := kit.WithOperation(context.Background(), "judit_quota")
	SetSlowThreshold(time.Hour)
	if _, err := db.ExecContext(ctx, "SELECT 1"); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Fatalf("fast statement logged at info: %s", buf.String())
	}

	SetSlowThreshold(time.Nanosecond)
	defer SetSlowThreshold(0)
	if _, err := db.ExecContext(ctx, "SELECT 2"); err != nil {
		t.Fatal(err)
	}
	var line struct {
		Level     string `json:"level"`
		Query     string `json:"query"`
		Operation string `json:"operation"`
		Transport string `json:"transport"`
	}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line %q: %v", buf.String(), err)
	}
	if line.Level != "WARN" || line.Query != "SELECT 2" || line.Operation != "judit_quota" || line.Transport != "http" {
		t.Errorf("slow log = %+v", line)
	}
}

func TestSetSlowThreshold_Default(t *testing.T) {
	SetSlowThreshold(250 * time.Millisecond)
	if got := SlowThreshold(); got != 250*time.Millisecond {
		t.Errorf("threshold = %v", got)
	}
	SetSlowThreshold(0)
	if got := SlowThreshold(); got != DefaultSlowThreshold {
		t.Errorf("reset threshold = %v, want %v", got, DefaultSlowThreshold)
	}
}
