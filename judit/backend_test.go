package judit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/jurimon/dbopen"
)

// fakeBackend is an in-process stand-in for the backend proxy. It keeps
// requests and trackings in memory and counts calls per route.
type fakeBackend struct {
	mu        sync.Mutex
	requests  map[string]map[string]any
	reqOrder  []string
	trackings map[string]map[string]any
	trkOrder  []string
	history   map[string]any
	public    map[string]any
	quota     map[string]any

	down       bool // every route answers 503
	quotaDown  bool
	emptySaved bool // POST /judit/requests answers {}
	nextID     int
	calls      map[string]int
	lastBody   map[string]any
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		requests:  map[string]map[string]any{},
		trackings: map[string]map[string]any{},
		history:   map[string]any{},
		quota: map[string]any{
			"usage":   map[string]any{"used": 12},
			"plan":    map[string]any{"maxQueries": 100},
			"blocked": false,
		},
		calls: map[string]int{},
	}
}

func (f *fakeBackend) count(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[route]
}

// update mutates the fake under its lock.
func (f *fakeBackend) update(fn func(f *fakeBackend)) {
	f.mu.Lock()
	fn(f)
	f.mu.Unlock()
}

func (f *fakeBackend) setDown(down bool) {
	f.update(func(f *fakeBackend) { f.down = down })
}

// sent returns a field of the last create body.
func (f *fakeBackend) sent(key string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastBody[key]
}

func (f *fakeBackend) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeBackend) addRequest(id string, rec map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec["request_id"] = id
	if _, ok := f.requests[id]; !ok {
		f.reqOrder = append(f.reqOrder, id)
	}
	f.requests[id] = rec
}

func (f *fakeBackend) setTrackingStatus(id, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.trackings[id]; ok {
		t["status"] = status
	}
}

func writeFake(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /judit/requests", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Search  map[string]any `json:"search"`
			JuditIA []string       `json:"judit_ia"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.nextID++
		id := fmt.Sprintf("req-%d", f.nextID)
		rec := map[string]any{
			"request_id": id,
			"search":     body.Search,
			"status":     "pending",
			"created_at": "2026-10-01T10:00:00Z",
		}
		if len(body.JuditIA) > 0 {
			rec["judit_ia"] = body.JuditIA
		}
		f.requests[id] = rec
		f.reqOrder = append(f.reqOrder, id)
		f.lastBody = map[string]any{"search": body.Search, "judit_ia": body.JuditIA}
		if f.emptySaved {
			writeFake(w, http.StatusCreated, map[string]any{})
			return
		}
		writeFake(w, http.StatusCreated, map[string]any{"saved": rec})
	})
	mux.HandleFunc("GET /judit/requests", func(w http.ResponseWriter, r *http.Request) {
		list := make([]any, 0, len(f.reqOrder))
		for _, id := range f.reqOrder {
			list = append(list, f.requests[id])
		}
		writeFake(w, http.StatusOK, map[string]any{"requests": list})
	})
	mux.HandleFunc("GET /judit/requests/{id}", func(w http.ResponseWriter, r *http.Request) {
		rec, ok := f.requests[r.PathValue("id")]
		if !ok {
			writeFake(w, http.StatusNotFound, map[string]any{"message": "request not found"})
			return
		}
		writeFake(w, http.StatusOK, rec)
	})
	mux.HandleFunc("POST /judit/requests/{id}/refresh", func(w http.ResponseWriter, r *http.Request) {
		rec, ok := f.requests[r.PathValue("id")]
		if !ok {
			writeFake(w, http.StatusNotFound, map[string]any{"message": "request not found"})
			return
		}
		writeFake(w, http.StatusOK, rec)
	})

	mux.HandleFunc("POST /judit/trackings", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		f.nextID++
		id := fmt.Sprintf("trk-%d", f.nextID)
		rec := map[string]any{
			"tracking_id":         id,
			"search":              body["search"],
			"recurrence":          body["recurrence"],
			"hour_range":          body["hour_range"],
			"notification_emails": body["notification_emails"],
			"with_attachments":    body["with_attachments"],
			"status":              "created",
		}
		f.trackings[id] = rec
		f.trkOrder = append(f.trkOrder, id)
		f.lastBody = body
		writeFake(w, http.StatusCreated, rec)
	})
	mux.HandleFunc("GET /judit/trackings", func(w http.ResponseWriter, r *http.Request) {
		list := make([]any, 0, len(f.trkOrder))
		for _, id := range f.trkOrder {
			if t, ok := f.trackings[id]; ok {
				list = append(list, t)
			}
		}
		writeFake(w, http.StatusOK, map[string]any{"trackings": list})
	})
	action := func(status string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			t, ok := f.trackings[r.PathValue("id")]
			if !ok {
				writeFake(w, http.StatusNotFound, map[string]any{"message": "tracking not found"})
				return
			}
			t["status"] = status
			writeFake(w, http.StatusOK, t)
		}
	}
	mux.HandleFunc("POST /judit/trackings/{id}/pause", action("paused"))
	mux.HandleFunc("POST /judit/trackings/{id}/resume", action("updating"))
	mux.HandleFunc("DELETE /judit/trackings/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if _, ok := f.trackings[id]; !ok {
			writeFake(w, http.StatusNotFound, map[string]any{"message": "tracking not found"})
			return
		}
		// Dropped from the list rather than reported as deleted.
		delete(f.trackings, id)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /judit/trackings/{id}/history", func(w http.ResponseWriter, r *http.Request) {
		body, ok := f.history[r.PathValue("id")]
		if !ok {
			body = map[string]any{"page": 1, "page_data": []any{}}
		}
		writeFake(w, http.StatusOK, body)
	})

	mux.HandleFunc("GET /publications/external/judit/quota", func(w http.ResponseWriter, r *http.Request) {
		if f.quotaDown {
			writeFake(w, http.StatusInternalServerError, map[string]any{"message": "quota unavailable"})
			return
		}
		writeFake(w, http.StatusOK, f.quota)
	})
	mux.HandleFunc("POST /publications/external/judit-public", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&f.lastBody)
		writeFake(w, http.StatusOK, f.public)
	})
	mux.HandleFunc("GET /publications/external/judit-public/history", func(w http.ResponseWriter, r *http.Request) {
		writeFake(w, http.StatusOK, f.public)
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls[r.Method+" "+r.URL.Path]++
		if f.down {
			writeFake(w, http.StatusServiceUnavailable, map[string]any{"message": "backend down"})
			return
		}
		mux.ServeHTTP(w, r)
	})
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// setupTestService wires a Service to a fake backend, an in-memory
// database and a manual clock starting at 2026-10-16 12:00 UTC.
func setupTestService(t *testing.T, mods ...func(*Config)) (*Service, *fakeBackend, *testClock) {
	t.Helper()
	fb := newFakeBackend()
	ts := httptest.NewServer(fb.handler())
	t.Cleanup(ts.Close)

	cfg := &Config{
		BackendURL:       ts.URL,
		BackendToken:     "test-token",
		BackendTimeout:   5 * time.Second,
		BreakerThreshold: 1000,
	}
	for _, m := range mods {
		m(cfg)
	}
	clk := &testClock{t: time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)}
	svc, err := New(dbopen.OpenMemory(t), cfg, slog.New(slog.DiscardHandler), WithClock(clk.Now))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc, fb, clk
}
