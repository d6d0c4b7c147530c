package judit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPortalLookup_CooldownPerKey(t *testing.T) {
	// WHAT: A search key can be looked up once per window; formatting does not dodge it.
	// WHY: The portal is public and every lookup spends provider quota.
	svc, fb, clk := setupTestService(t)
	fb.update(func(f *fakeBackend) {
		f.public = map[string]any{"data": []any{
			map[string]any{"date": "2026-10-10", "title": "Distribuído"},
		}}
	})
	ctx := context.Background()

	res, err := svc.PortalLookup(ctx, SearchKey{SearchCPF, "123.456.789-09"})
	if err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	if res.Search.Value != "12345678909" || len(res.Timeline) != 1 {
		t.Errorf("result = %+v", res)
	}

	_, err = svc.PortalLookup(ctx, SearchKey{SearchCPF, "12345678909"})
	var cd *CooldownError
	if !errors.As(err, &cd) {
		t.Fatalf("second lookup err = %v, want CooldownError", err)
	}

	// Another key is independent.
	if _, err := svc.PortalLookup(ctx, SearchKey{SearchCNPJ, "12345678000190"}); err != nil {
		t.Errorf("other key: %v", err)
	}

	clk.Advance(31 * time.Second)
	if _, err := svc.PortalLookup(ctx, SearchKey{SearchCPF, "12345678909"}); err != nil {
		t.Errorf("after window: %v", err)
	}
	if n := fb.count("POST /publications/external/judit-public"); n != 3 {
		t.Errorf("backend lookups = %d, want 3", n)
	}
}

func TestPortalHistory_NotGated(t *testing.T) {
	svc, fb, _ := setupTestService(t)
	fb.update(func(f *fakeBackend) { f.public = map[string]any{"data": []any{}} })
	ctx := context.Background()
	for range 2 {
		hp, err := svc.PortalHistory(ctx, SearchKey{SearchCPF, "12345678909"}, 0, 0)
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		if hp.Page != 1 {
			t.Errorf("page = %d, want 1", hp.Page)
		}
	}
	if _, err := svc.PortalHistory(ctx, SearchKey{"rg", "1"}, 0, 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad key err = %v", err)
	}
}
