// CLAUDE:SUMMARY Request operations: create (on-demand cooldown), get, list with resync, refresh (per-request cooldown), detail view with summary.
package judit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hazyhaar/jurimon/judit/internal/client"
	"github.com/hazyhaar/jurimon/judit/internal/cooldown"
	"github.com/hazyhaar/jurimon/judit/internal/lifecycle"
	"github.com/hazyhaar/jurimon/judit/internal/normalize"
	"github.com/hazyhaar/jurimon/judit/internal/store"
	"github.com/hazyhaar/jurimon/richtext"
	"github.com/hazyhaar/jurimon/telemetry"
)

var responseTypes = map[string]bool{"": true, "lawsuit": true, "parties": true, "attachments": true, "step": true, "lawsuits": true}

// CreateRequest issues a query. On-demand queries hit the provider directly
// and spend quota, so they are gated by the cooldown of their search key.
func (svc *Service) CreateRequest(ctx context.Context, in CreateRequestInput) (*Request, error) {
	key, err := NormalizeSearchKey(in.Search)
	if err != nil {
		return nil, err
	}
	rt := strings.ToLower(strings.TrimSpace(in.ResponseType))
	if !responseTypes[rt] {
		return nil, fmt.Errorf("%w: unknown response_type %q", ErrInvalidInput, in.ResponseType)
	}
	if in.OnDemand {
		if err := svc.acquire(ctx, "search", cooldown.SearchKey(string(key.Type), key.Value)); err != nil {
			return nil, err
		}
	}

	body := client.CreateRequestBody{Search: client.SearchBody{
		SearchType:   string(key.Type),
		SearchKey:    key.Value,
		ResponseType: rt,
	}}
	if in.OnDemand {
		on := true
		body.Search.OnDemand = &on
	}
	if in.AISummary {
		body.JuditIA = []string{"summary"}
	}

	resp, err := svc.backend.CreateRequest(ctx, body)
	if err != nil {
		svc.logger.WarnContext(ctx, "judit: create request failed", "search_type", key.Type, "error", err)
		svc.resyncRequests(ctx)
		return nil, upstream("create_request", err)
	}

	if len(resp.Saved) > 0 {
		if row := requestRowFrom(decodeObject(resp.Saved)); row != nil {
			row.OnDemand = row.OnDemand || in.OnDemand
			row.AISummary = row.AISummary || in.AISummary
			if len(resp.Responses) > 0 && row.ResultJSON == "" {
				row.ResultJSON = string(resp.Responses)
			}
			if row.SearchType == "" {
				row.SearchType, row.SearchKey = string(key.Type), key.Value
			}
			if !live(ctx) {
				return requestFromRow(row), nil
			}
			if err := svc.applyRequest(ctx, row); err != nil {
				return nil, err
			}
			return svc.cachedRequest(ctx, row.RequestID)
		}
	}

	// No saved record: the list is the only way to learn the new ID.
	list, err := svc.ListRequests(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range list {
		if r.Search == key {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: create_request: created request not listed", ErrUpstream)
}

// GetRequest fetches a request with its result and caches it.
func (svc *Service) GetRequest(ctx context.Context, id string) (*Request, error) {
	raw, err := svc.backend.GetRequest(ctx, id)
	if err != nil {
		return nil, upstream("get_request", err)
	}
	row := requestRowFrom(decodeObject(raw))
	if row == nil {
		return nil, fmt.Errorf("%w: get_request: no request in response", ErrUpstream)
	}
	if row.RequestID != id {
		row.RequestID = id
	}
	if !live(ctx) {
		return requestFromRow(row), nil
	}
	if err := svc.applyRequest(ctx, row); err != nil {
		return nil, err
	}
	return svc.cachedRequest(ctx, id)
}

// ListRequests resynchronizes the cache from the backend and returns it.
// When the backend fails the cached list is returned with the error.
func (svc *Service) ListRequests(ctx context.Context) ([]*Request, error) {
	syncErr := svc.syncRequests(ctx)
	rows, err := svc.store.ListRequests(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("judit: list requests: %w", err)
	}
	out := make([]*Request, 0, len(rows))
	for _, r := range rows {
		out = append(out, requestFromRow(r))
	}
	return out, syncErr
}

// RefreshRequest re-executes a request server side. One refresh per request
// per cooldown window.
func (svc *Service) RefreshRequest(ctx context.Context, id string) (*Request, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	if err := svc.acquire(ctx, "request", cooldown.RequestKey(id)); err != nil {
		return nil, err
	}
	raw, err := svc.backend.RefreshRequest(ctx, id)
	if err != nil {
		svc.logger.WarnContext(ctx, "judit: refresh request failed", "request_id", id, "error", err)
		svc.resyncRequests(ctx)
		return nil, upstream("refresh_request", err)
	}
	if row := requestRowFrom(decodeObject(raw)); row != nil && live(ctx) {
		row.RequestID = id
		if err := svc.applyRequest(ctx, row); err != nil {
			return nil, err
		}
	}
	return svc.GetRequest(ctx, id)
}

// RequestView returns the request with its normalized timeline, processes
// and rendered AI summary. When the backend is unreachable the cached copy
// answers and Stale is set.
func (svc *Service) RequestView(ctx context.Context, id string) (*RequestView, error) {
	req, err := svc.GetRequest(ctx, id)
	stale := false
	if err != nil {
		if !errors.Is(err, ErrUpstream) {
			return nil, err
		}
		cached, cerr := svc.store.GetRequest(ctx, id)
		if cerr != nil || cached == nil {
			return nil, err
		}
		svc.logger.WarnContext(ctx, "judit: serving cached request", "request_id", id, "error", err)
		req, stale = requestFromRow(cached), true
	}

	v := &RequestView{Request: req, Stale: stale, Timeline: Timeline{}}
	if req.Result != nil {
		v.Timeline = req.Result.Timeline()
		v.LastUpdate = v.Timeline.LastUpdate()
		v.Processes = req.Result.Processes()
		if it, ok := normalize.Summary(*req.Result); ok {
			v.Summary = normalize.SummaryText(it)
			v.SummaryHTML = richtext.RenderSummary(v.Summary)
		}
		telemetry.NormalizedItems.Add(float64(len(v.Timeline)))
	}
	if r, err := svc.limiter.Remaining(ctx, cooldown.RequestKey(id)); err == nil {
		v.CooldownMs = r.Milliseconds()
	}
	return v, nil
}

// applyRequest merges a server snapshot into the cache. The server is the
// authority on status, except that a completed request stays completed.
func (svc *Service) applyRequest(ctx context.Context, row *store.RequestRow) error {
	prev, err := svc.store.GetRequest(ctx, row.RequestID)
	if err != nil {
		return fmt.Errorf("judit: %w", err)
	}
	if prev != nil {
		if row.SearchType == "" {
			row.SearchType, row.SearchKey = prev.SearchType, prev.SearchKey
		}
		if row.ResponseType == "" {
			row.ResponseType = prev.ResponseType
		}
		row.OnDemand = row.OnDemand || prev.OnDemand
		if row.Status == "" {
			row.Status = prev.Status
		}
		from, to := lifecycle.RequestStatus(prev.Status), lifecycle.RequestStatus(row.Status)
		if err := from.Transition(to); err != nil {
			if from == lifecycle.RequestCompleted {
				svc.logger.WarnContext(ctx, "judit: ignoring status change of completed request",
					"request_id", row.RequestID, "reported", row.Status)
				row.Status = prev.Status
			} else {
				svc.logger.DebugContext(ctx, "judit: server moved request outside table",
					"request_id", row.RequestID, "from", prev.Status, "to", row.Status)
			}
		}
	}
	if err := svc.store.UpsertRequest(ctx, row); err != nil {
		return fmt.Errorf("judit: %w", err)
	}
	return nil
}

func (svc *Service) cachedRequest(ctx context.Context, id string) (*Request, error) {
	row, err := svc.store.GetRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("judit: %w", err)
	}
	if row == nil {
		return nil, fmt.Errorf("%w: request %s", ErrNotFound, id)
	}
	return requestFromRow(row), nil
}

func (svc *Service) syncRequests(ctx context.Context) error {
	raw, err := svc.backend.ListRequests(ctx)
	if err != nil {
		return upstream("list_requests", err)
	}
	if !live(ctx) {
		return ctx.Err()
	}
	for _, m := range decodeList(raw, requestListKeys) {
		row := requestRowFrom(m)
		if row == nil {
			continue
		}
		if err := svc.applyRequest(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// resyncRequests reloads the list after a failed call. Its own failure is
// only logged: the caller already reports the first one.
func (svc *Service) resyncRequests(ctx context.Context) {
	if err := svc.syncRequests(ctx); err != nil {
		svc.logger.WarnContext(ctx, "judit: request resync failed", "error", err)
	}
}
