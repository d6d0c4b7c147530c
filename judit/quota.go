// CLAUDE:SUMMARY Advisory quota display (failures become Loading) and the dashboard that loads trackings and quota concurrently.
package judit

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Quota returns the tenant usage. It never fails: an unreachable backend
// yields Loading, since the display is advisory.
func (svc *Service) Quota(ctx context.Context) QuotaView {
	q, err := svc.backend.Quota(ctx)
	if err != nil {
		svc.logger.WarnContext(ctx, "judit: quota unavailable", "error", err)
		return QuotaView{Loading: true}
	}
	return QuotaView{
		Used:    q.Usage.Used,
		Max:     q.Plan.MaxQueries,
		Blocked: q.Blocked,
	}
}

// Dashboard loads the tracking list and the quota concurrently; neither
// depends on the other.
func (svc *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	d := &Dashboard{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := svc.ListTrackings(gctx, false)
		if err != nil && list == nil {
			return err
		}
		d.Trackings, d.Stale = list, err != nil
		return nil
	})
	g.Go(func() error {
		d.Quota = svc.Quota(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	counts, err := svc.store.CountTrackingsByStatus(ctx)
	if err != nil {
		svc.logger.WarnContext(ctx, "judit: count trackings", "error", err)
		counts = map[string]int{}
	}
	d.StatusCounts = counts
	return d, nil
}
