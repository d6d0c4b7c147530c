package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/jurimon/judit"
	"github.com/hazyhaar/jurimon/kit"
	"github.com/hazyhaar/jurimon/observability"
	"github.com/hazyhaar/jurimon/shield"
	"github.com/hazyhaar/jurimon/telemetry"
)

const (
	maxBodyBytes  = 1 << 20
	pollerWorker  = "poller"
	heartbeatSlop = 3
)

// server holds what the HTTP routes need. Optional parts may be nil.
type server struct {
	svc       *judit.Service
	db        *sql.DB
	mcp       *mcp.Server
	portal    *shield.RateLimiter
	maint     *shield.MaintenanceMode
	logger    *slog.Logger
	pollEvery time.Duration
	now       func() time.Time
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	for _, mw := range shield.DefaultStack(s.logger, maxBodyBytes) {
		r.Use(mw)
	}
	if s.maint != nil {
		r.Use(s.maint.Middleware)
	}

	r.Get("/health", s.health)
	r.Handle("/metrics", telemetry.Handler())
	if s.mcp != nil {
		r.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcp }, nil))
	}
	r.With(transport("webhook")).Post("/webhooks/judit", op("judit_webhook", s.webhook))

	r.Route("/api", func(r chi.Router) {
		r.Post("/requests", op("judit_create_request", s.createRequest))
		r.Get("/requests", op("judit_list_requests", s.listRequests))
		r.Get("/requests/{id}", op("judit_get_request", s.getRequest))
		r.Post("/requests/{id}/refresh", op("judit_refresh_request", s.refreshRequest))
		r.Get("/requests/{id}/view", op("judit_request_view", s.requestView))
		r.Get("/cooldown", op("judit_cooldown", s.cooldown))

		r.Post("/trackings", op("judit_register_tracking", s.registerTracking))
		r.Get("/trackings", op("judit_list_trackings", s.listTrackings))
		r.Get("/trackings/{id}", op("judit_get_tracking", s.getTracking))
		r.Post("/trackings/{id}/pause", op("judit_pause_tracking", s.trackingAction(s.svc.PauseTracking)))
		r.Post("/trackings/{id}/resume", op("judit_resume_tracking", s.trackingAction(s.svc.ResumeTracking)))
		r.Delete("/trackings/{id}", op("judit_delete_tracking", s.deleteTracking))
		r.Get("/trackings/{id}/history", op("judit_tracking_history", s.trackingHistory))

		r.Get("/quota", op("judit_quota", s.quota))
		r.Get("/dashboard", op("judit_dashboard", s.dashboard))

		r.Post("/publications", op("judit_import_publication", s.importPublication))
		r.Get("/publications", op("judit_list_publications", s.listPublications))
		r.Get("/publications/{id}", op("judit_get_publication", s.getPublication))
		r.Get("/publications/{id}/events", op("judit_publication_events", s.publicationEvents))
		for _, action := range []string{"open", "assign", "complete", "discard"} {
			r.Post("/publications/{id}/"+action, op("judit_"+action+"_publication", s.publicationAction(action)))
		}

		r.Get("/events", op("judit_events", s.events))

		r.Group(func(r chi.Router) {
			r.Use(public)
			if s.portal != nil {
				r.Use(s.portal.Middleware)
			}
			r.Post("/portal/lookup", op("judit_portal_lookup", s.portalLookup))
			r.Get("/portal/history", op("judit_portal_history", s.portalHistory))
		})
	})
	return r
}

// transport tags the request context for logs and endpoint metrics.
func transport(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(kit.WithTransport(r.Context(), name)))
		})
	}
}

// op names the jurimon operation a route runs, for the SQL tracer.
func op(name string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h(w, r.WithContext(kit.WithOperation(r.Context(), name)))
	}
}

// public marks unauthenticated portal routes; their upstream errors are not
// echoed back.
func public(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(kit.WithPublic(r.Context())))
	})
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if s.maint != nil {
		resp["maintenance"] = s.maint.Active()
	}
	if s.db != nil && s.pollEvery > 0 {
		hb, err := observability.LatestHeartbeat(r.Context(), s.db, pollerWorker, heartbeatSlop*s.pollEvery, s.now())
		if err == nil && hb != nil {
			resp["poller"] = hb
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "body too large"})
		return
	}
	res, err := s.svc.HandleWebhook(r.Context(), body, r.Header.Get(judit.SignatureHeader))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- Requests ---

func (s *server) createRequest(w http.ResponseWriter, r *http.Request) {
	var in judit.CreateRequestInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	req, err := s.svc.CreateRequest(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (s *server) listRequests(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.ListRequests(r.Context())
	if err != nil && (list == nil || !errors.Is(err, judit.ErrUpstream)) {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": list, "stale": err != nil})
}

func (s *server) getRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.svc.GetRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *server) refreshRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.svc.RefreshRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *server) requestView(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.RequestView(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *server) cooldown(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	remaining, err := s.svc.CooldownRemaining(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"key":          key,
		"remaining_ms": remaining.Milliseconds(),
		"window_ms":    s.svc.CooldownWindow().Milliseconds(),
	})
}

// --- Trackings ---

func (s *server) registerTracking(w http.ResponseWriter, r *http.Request) {
	var in judit.TrackingInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.svc.RegisterTracking(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *server) listTrackings(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.ListTrackings(r.Context(), queryBool(r, "force_sync"))
	if err != nil && (list == nil || !errors.Is(err, judit.ErrUpstream)) {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trackings": list, "stale": err != nil})
}

func (s *server) getTracking(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.GetTracking(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *server) trackingAction(action func(ctx context.Context, id string) (*judit.Tracking, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := action(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func (s *server) deleteTracking(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteTracking(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *server) trackingHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	page, size := queryInt(r, "page", 0), queryInt(r, "page_size", 0)
	var (
		hp  *judit.HistoryPage
		err error
	)
	if queryBool(r, "force_sync") {
		hp, err = s.svc.ForceSyncTrackingHistory(r.Context(), id, page, size)
	} else {
		hp, err = s.svc.TrackingHistory(r.Context(), id, page, size)
	}
	if err != nil && (hp == nil || !errors.Is(err, judit.ErrUpstream)) {
		writeError(w, r, err)
		return
	}
	if !queryBool(r, "raw") {
		hp.Raw = nil
	}
	writeJSON(w, http.StatusOK, hp)
}

func (s *server) quota(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Quota(r.Context()))
}

func (s *server) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Dashboard(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// --- Publications ---

func (s *server) importPublication(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Content    json.RawMessage `json:"content"`
		TrackingID string          `json:"tracking_id"`
		RequestID  string          `json:"request_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	pub, created, err := s.svc.ImportPublication(r.Context(), in.Content, in.TrackingID, in.RequestID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !created {
		writeJSON(w, http.StatusOK, map[string]any{"created": false})
		return
	}
	writeJSON(w, http.StatusCreated, pub)
}

func (s *server) listPublications(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.ListPublications(r.Context(), r.URL.Query().Get("status"), queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"publications": list})
}

func (s *server) getPublication(w http.ResponseWriter, r *http.Request) {
	pub, err := s.svc.GetPublication(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pub)
}

// publicationAction serves one inbox action. open never fails on the
// transition itself: it is the read that marks a publication pendente.
func (s *server) publicationAction(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var (
			pub *judit.Publication
			err error
		)
		if action == "open" {
			pub, err = s.svc.OpenPublication(r.Context(), id)
		} else {
			pub, err = s.svc.ApplyPublicationAction(r.Context(), id, action)
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, pub)
	}
}

func (s *server) publicationEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.svc.GetPublication(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	s.writeEvents(w, r, "publication", id)
}

func (s *server) events(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.writeEvents(w, r, q.Get("entity_type"), q.Get("entity_id"))
}

func (s *server) writeEvents(w http.ResponseWriter, r *http.Request, entityType, entityID string) {
	events, err := observability.ListEvents(r.Context(), s.db, entityType, entityID, queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if events == nil {
		events = []observability.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// --- Public portal ---

func (s *server) portalLookup(w http.ResponseWriter, r *http.Request) {
	var key judit.SearchKey
	if err := decodeJSON(r, &key); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.svc.PortalLookup(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) portalHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := judit.SearchKey{Type: judit.SearchType(q.Get("type")), Value: q.Get("value")}
	hp, err := s.svc.PortalHistory(r.Context(), key, queryInt(r, "page", 0), queryInt(r, "page_size", 0))
	if err != nil {
		writeError(w, r, err)
		return
	}
	hp.Raw = nil
	writeJSON(w, http.StatusOK, hp)
}
