// CLAUDE:SUMMARY Tracking operations: register, list with resync, pause/resume/delete behind the lifecycle table, history and cooldown-gated force-sync.
package judit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hazyhaar/jurimon/judit/internal/client"
	"github.com/hazyhaar/jurimon/judit/internal/cooldown"
	"github.com/hazyhaar/jurimon/judit/internal/lifecycle"
	"github.com/hazyhaar/jurimon/judit/internal/normalize"
	"github.com/hazyhaar/jurimon/judit/internal/store"
	"github.com/hazyhaar/jurimon/telemetry"
)

// RegisterTracking validates the input, creates the tracking and refreshes
// the tracking list.
func (svc *Service) RegisterTracking(ctx context.Context, in TrackingInput) (*Tracking, error) {
	key, emails, terms, err := validateTracking(in)
	if err != nil {
		return nil, err
	}
	raw, err := svc.backend.CreateTracking(ctx, client.TrackingBody{
		Search: client.SearchBody{
			SearchType: string(key.Type),
			SearchKey:  key.Value,
		},
		Recurrence:         in.Recurrence,
		NotificationEmails: emails,
		StepTerms:          terms,
		WithAttachments:    in.WithAttachments,
		HourRange:          in.HourRange,
	})
	if err != nil {
		svc.logger.WarnContext(ctx, "judit: create tracking failed", "search_type", key.Type, "error", err)
		svc.resyncTrackings(ctx)
		return nil, upstream("create_tracking", err)
	}

	var id string
	if row := trackingRowFrom(decodeObject(raw)); row != nil {
		id = row.TrackingID
		if row.SearchType == "" {
			row.SearchType, row.SearchKey = string(key.Type), key.Value
		}
		if live(ctx) {
			if err := svc.applyTrackings(ctx, []*store.TrackingRow{row}); err != nil {
				return nil, err
			}
		}
	}

	list, err := svc.ListTrackings(ctx, false)
	if err != nil && list == nil {
		return nil, err
	}
	for _, t := range list {
		if (id != "" && t.TrackingID == id) || (id == "" && t.Search == key) {
			svc.logEvent(ctx, "tracking", t.TrackingID, "register", true, "")
			return t, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: create_tracking: created tracking not listed", ErrUpstream)
}

// ListTrackings resynchronizes the cache and returns the non-deleted
// trackings. forceSync asks the backend to pull statuses from the provider.
// When the backend fails the cached list is returned with the error.
func (svc *Service) ListTrackings(ctx context.Context, forceSync bool) ([]*Tracking, error) {
	syncErr := svc.syncTrackings(ctx, forceSync)
	rows, err := svc.store.ListTrackings(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("judit: list trackings: %w", err)
	}
	out := make([]*Tracking, 0, len(rows))
	for _, r := range rows {
		out = append(out, trackingFromRow(r))
	}
	return out, syncErr
}

// GetTracking returns a cached tracking, refreshing the list once when it is
// not cached yet.
func (svc *Service) GetTracking(ctx context.Context, id string) (*Tracking, error) {
	row, err := svc.trackingRow(ctx, id)
	if err != nil {
		return nil, err
	}
	return trackingFromRow(row), nil
}

// PauseTracking pauses a tracking.
func (svc *Service) PauseTracking(ctx context.Context, id string) (*Tracking, error) {
	return svc.trackingAction(ctx, id, lifecycle.ActionPause, svc.backend.PauseTracking)
}

// ResumeTracking resumes a paused tracking.
func (svc *Service) ResumeTracking(ctx context.Context, id string) (*Tracking, error) {
	return svc.trackingAction(ctx, id, lifecycle.ActionResume, svc.backend.ResumeTracking)
}

// DeleteTracking deletes a tracking. The list is refreshed rather than the
// row dropped, so a rejected delete does not leave the cache drifting.
func (svc *Service) DeleteTracking(ctx context.Context, id string) error {
	_, err := svc.trackingAction(ctx, id, lifecycle.ActionDelete, func(ctx context.Context, id string) (json.RawMessage, error) {
		return nil, svc.backend.DeleteTracking(ctx, id)
	})
	return err
}

func (svc *Service) trackingAction(ctx context.Context, id string, action lifecycle.TrackingAction,
	call func(context.Context, string) (json.RawMessage, error)) (*Tracking, error) {
	row, err := svc.guardTracking(ctx, id, action)
	if err != nil {
		return nil, err
	}
	if _, err := call(ctx, id); err != nil {
		svc.logger.WarnContext(ctx, "judit: tracking action failed", "tracking_id", id, "action", action, "error", err)
		svc.resyncTrackings(ctx)
		svc.logEvent(ctx, "tracking", id, string(action), false, "")
		return nil, upstream(string(action)+"_tracking", err)
	}
	svc.logEvent(ctx, "tracking", id, string(action), true, fmt.Sprintf(`{"from":%q}`, row.Status))

	// The backend may drop a deleted tracking from its list instead of
	// reporting it; record the terminal state so it cannot come back.
	if action == lifecycle.ActionDelete {
		row.Status = string(lifecycle.TrackingDeleted)
		if err := svc.store.UpsertTracking(ctx, row); err != nil {
			return nil, fmt.Errorf("judit: %w", err)
		}
	}

	if err := svc.syncTrackings(ctx, false); err != nil {
		svc.logger.WarnContext(ctx, "judit: refresh after tracking action failed", "tracking_id", id, "error", err)
	}
	fresh, err := svc.store.GetTracking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("judit: %w", err)
	}
	if fresh == nil {
		return nil, fmt.Errorf("%w: tracking %s", ErrNotFound, id)
	}
	return trackingFromRow(fresh), nil
}

// guardTracking loads the tracking and checks action against its status.
func (svc *Service) guardTracking(ctx context.Context, id string, action lifecycle.TrackingAction) (*store.TrackingRow, error) {
	row, err := svc.trackingRow(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.TrackingStatus(row.Status).Allow(action); err != nil {
		if errors.Is(err, lifecycle.ErrTerminal) {
			return nil, fmt.Errorf("%w: %w", ErrTrackingDeleted, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidTransition, err)
	}
	return row, nil
}

func (svc *Service) trackingRow(ctx context.Context, id string) (*store.TrackingRow, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	row, err := svc.store.GetTracking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("judit: %w", err)
	}
	if row == nil {
		if err := svc.syncTrackings(ctx, false); err != nil {
			return nil, err
		}
		if row, err = svc.store.GetTracking(ctx, id); err != nil {
			return nil, fmt.Errorf("judit: %w", err)
		}
	}
	if row == nil {
		return nil, fmt.Errorf("%w: tracking %s", ErrNotFound, id)
	}
	return row, nil
}

// TrackingHistory returns one normalized page of history. When the backend
// fails, a cached copy of the page is returned with Stale set and the error.
func (svc *Service) TrackingHistory(ctx context.Context, id string, page, pageSize int) (*HistoryPage, error) {
	page, pageSize, err := validatePage(page, pageSize)
	if err != nil {
		return nil, err
	}
	if err := validateID(id); err != nil {
		return nil, err
	}
	return svc.history(ctx, id, page, pageSize, false)
}

// ForceSyncTrackingHistory is TrackingHistory with the provider asked to
// refresh first. It spends quota, so it is gated per tracking by the
// cooldown and refused for deleted trackings.
func (svc *Service) ForceSyncTrackingHistory(ctx context.Context, id string, page, pageSize int) (*HistoryPage, error) {
	page, pageSize, err := validatePage(page, pageSize)
	if err != nil {
		return nil, err
	}
	if _, err := svc.guardTracking(ctx, id, lifecycle.ActionForceSync); err != nil {
		return nil, err
	}
	if err := svc.acquire(ctx, "tracking", cooldown.TrackingKey(id)); err != nil {
		return nil, err
	}
	hp, err := svc.history(ctx, id, page, pageSize, true)
	if err != nil {
		return hp, err
	}
	if err := svc.syncTrackings(ctx, false); err != nil {
		svc.logger.WarnContext(ctx, "judit: refresh after force-sync failed", "tracking_id", id, "error", err)
	}
	return hp, nil
}

func (svc *Service) history(ctx context.Context, id string, page, pageSize int, force bool) (*HistoryPage, error) {
	op := "tracking_history"
	raw, err := svc.backend.TrackingHistory(ctx, id, page, pageSize, force)
	if err != nil {
		svc.logger.WarnContext(ctx, "judit: history fetch failed", "tracking_id", id, "page", page, "force", force, "error", err)
		svc.resyncTrackings(ctx)
		cached, cerr := svc.store.GetHistoryPage(ctx, id, page, pageSize)
		if cerr == nil && cached != nil {
			hp := historyPage(json.RawMessage(cached.BodyJSON), page, pageSize)
			hp.TrackingID, hp.FetchedAt, hp.Stale = id, fromMillis(cached.FetchedAt), true
			return hp, upstream(op, err)
		}
		return nil, upstream(op, err)
	}

	now := svc.now()
	if live(ctx) {
		if err := svc.store.SaveHistoryPage(ctx, &store.HistoryPage{
			TrackingID: id, Page: page, PageSize: pageSize,
			BodyJSON: string(raw), FetchedAt: now.UnixMilli(),
		}); err != nil {
			svc.logger.WarnContext(ctx, "judit: cache history page", "tracking_id", id, "error", err)
		}
	}
	hp := historyPage(raw, page, pageSize)
	hp.TrackingID, hp.FetchedAt = id, now.UTC()
	return hp, nil
}

// historyPage normalizes a history body. Paging fields come from the body
// when present, else from the request.
func historyPage(raw json.RawMessage, page, pageSize int) *HistoryPage {
	res := normalize.NormalizeJSON(raw)
	paging := normalize.ParseRequestResult(raw)
	hp := &HistoryPage{
		Page:          page,
		PageSize:      pageSize,
		PageCount:     paging.PageCount,
		AllPagesCount: paging.AllPagesCount,
		AllCount:      paging.AllCount,
		Timeline:      res.Timeline,
		LastUpdate:    res.LastUpdate,
		Processes:     res.Processes,
		Raw:           raw,
	}
	if paging.Page > 0 {
		hp.Page = paging.Page
	}
	if hp.Timeline == nil {
		hp.Timeline = Timeline{}
	}
	telemetry.NormalizedItems.Add(float64(len(hp.Timeline)))
	return hp
}

// applyTrackings merges server snapshots. A deleted tracking stays deleted
// whatever a later snapshot says.
func (svc *Service) applyTrackings(ctx context.Context, rows []*store.TrackingRow) error {
	for _, row := range rows {
		prev, err := svc.store.GetTracking(ctx, row.TrackingID)
		if err != nil {
			return fmt.Errorf("judit: %w", err)
		}
		if prev == nil {
			continue
		}
		if row.SearchType == "" {
			row.SearchType, row.SearchKey = prev.SearchType, prev.SearchKey
		}
		if row.Status == "" {
			row.Status = prev.Status
		}
		from, to := lifecycle.TrackingStatus(prev.Status), lifecycle.TrackingStatus(row.Status)
		if err := from.Transition(to); err != nil {
			if from.Terminal() {
				svc.logger.WarnContext(ctx, "judit: ignoring status change of deleted tracking",
					"tracking_id", row.TrackingID, "reported", row.Status)
				row.Status = prev.Status
			} else {
				svc.logger.DebugContext(ctx, "judit: server moved tracking outside table",
					"tracking_id", row.TrackingID, "from", prev.Status, "to", row.Status)
			}
		}
	}
	if err := svc.store.UpsertTrackings(ctx, rows); err != nil {
		return fmt.Errorf("judit: %w", err)
	}
	return nil
}

func (svc *Service) syncTrackings(ctx context.Context, forceSync bool) error {
	raw, err := svc.backend.ListTrackings(ctx, forceSync)
	if err != nil {
		return upstream("list_trackings", err)
	}
	if !live(ctx) {
		return ctx.Err()
	}
	var rows []*store.TrackingRow
	for _, m := range decodeList(raw, trackingListKeys) {
		if row := trackingRowFrom(m); row != nil {
			rows = append(rows, row)
		}
	}
	return svc.applyTrackings(ctx, rows)
}

// SyncTrackings is the poller entry point: one list refresh.
func (svc *Service) SyncTrackings(ctx context.Context) error {
	return svc.syncTrackings(ctx, false)
}

func (svc *Service) resyncTrackings(ctx context.Context) {
	if err := svc.syncTrackings(ctx, false); err != nil {
		svc.logger.WarnContext(ctx, "judit: tracking resync failed", "error", err)
	}
}
