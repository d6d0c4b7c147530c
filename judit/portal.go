// CLAUDE:SUMMARY Public client-portal lookups: normalized search key, per-key cooldown on lookups, normalized history pages.
package judit

import (
	"context"

	"github.com/hazyhaar/jurimon/judit/internal/client"
	"github.com/hazyhaar/jurimon/judit/internal/cooldown"
	"github.com/hazyhaar/jurimon/judit/internal/normalize"
	"github.com/hazyhaar/jurimon/telemetry"
)

// PortalLookup runs the unauthenticated client lookup. Each search key may
// be looked up once per cooldown window.
func (svc *Service) PortalLookup(ctx context.Context, search SearchKey) (*PortalResult, error) {
	key, err := NormalizeSearchKey(search)
	if err != nil {
		return nil, err
	}
	if err := svc.acquire(ctx, "portal", cooldown.PortalKey(string(key.Type), key.Value)); err != nil {
		return nil, err
	}
	raw, err := svc.backend.PublicLookup(ctx, client.PublicLookupBody{
		SearchType: string(key.Type),
		SearchKey:  key.Value,
	})
	if err != nil {
		svc.logger.WarnContext(ctx, "judit: portal lookup failed", "search_type", key.Type, "error", err)
		return nil, upstream("public_lookup", err)
	}
	res := normalize.NormalizeJSON(raw)
	if res.Timeline == nil {
		res.Timeline = Timeline{}
	}
	telemetry.NormalizedItems.Add(float64(len(res.Timeline)))
	return &PortalResult{
		Search:     key,
		Timeline:   res.Timeline,
		LastUpdate: res.LastUpdate,
		Processes:  res.Processes,
	}, nil
}

// PortalHistory pages through the public history of a search key. Paging is
// not gated: only the lookup spends quota.
func (svc *Service) PortalHistory(ctx context.Context, search SearchKey, page, pageSize int) (*HistoryPage, error) {
	key, err := NormalizeSearchKey(search)
	if err != nil {
		return nil, err
	}
	page, pageSize, err = validatePage(page, pageSize)
	if err != nil {
		return nil, err
	}
	raw, err := svc.backend.PublicHistory(ctx, string(key.Type), key.Value, page, pageSize)
	if err != nil {
		return nil, upstream("public_history", err)
	}
	hp := historyPage(raw, page, pageSize)
	hp.FetchedAt = svc.now().UTC()
	return hp, nil
}
