package judit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hazyhaar/jurimon/dbopen"
	"github.com/hazyhaar/jurimon/observability"
)

const testLawsuit = `{
	"code": "0001234-56.2024.8.26.0100",
	"tribunal_acronym": "TJSP",
	"status": "Em andamento",
	"publication_date": "2026-10-15",
	"data_encerramento": "2026-10-30",
	"parties": [{"name": "Maria Silva", "main_document": "12345678909"}]
}`

func importTestPublication(t *testing.T, svc *Service) *Publication {
	t.Helper()
	pub, created, err := svc.ImportPublication(context.Background(), json.RawMessage(testLawsuit), "trk-1", "")
	if err != nil {
		t.Fatalf("ImportPublication: %v", err)
	}
	if !created {
		t.Fatal("first import not created")
	}
	return pub
}

func TestImportPublication_DerivedFields(t *testing.T) {
	// WHAT: Import derives process, court, party, date and tags, and starts as nova.
	// WHY: The inbox shows these columns without parsing content.
	svc, _, _ := setupTestService(t)
	pub := importTestPublication(t, svc)

	if pub.Status != "nova" {
		t.Errorf("status = %q, want nova", pub.Status)
	}
	if pub.ProcessNumber != "0001234-56.2024.8.26.0100" || pub.Court != "TJSP" {
		t.Errorf("process=%q court=%q", pub.ProcessNumber, pub.Court)
	}
	if pub.SearchedName != "Maria Silva" || pub.Document != "12345678909" {
		t.Errorf("name=%q document=%q", pub.SearchedName, pub.Document)
	}
	if len(pub.DerivedTags) != 2 || pub.DerivedTags[0] != "Atenção" || pub.DerivedTags[1] != "Em Processo" {
		t.Errorf("tags = %v", pub.DerivedTags)
	}
	if pub.PublicationDate == nil || pub.PublicationDate.Format(time.DateOnly) != "2026-10-15" {
		t.Errorf("publication date = %v", pub.PublicationDate)
	}
	if len(pub.ID) < 5 || pub.ID[:4] != "pub_" {
		t.Errorf("id = %q, want pub_ prefix", pub.ID)
	}
}

func TestImportPublication_Dedup(t *testing.T) {
	// WHAT: The same content imported twice yields one inbox entry.
	// WHY: Webhooks are redelivered; the inbox must not fill with copies.
	svc, _, _ := setupTestService(t)
	ctx := context.Background()
	importTestPublication(t, svc)

	pub, created, err := svc.ImportPublication(ctx, json.RawMessage(testLawsuit), "trk-1", "")
	if err != nil || created || pub != nil {
		t.Fatalf("second import: pub=%v created=%v err=%v", pub, created, err)
	}
	list, err := svc.ListPublications(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("inbox has %d entries, want 1", len(list))
	}
}

func TestImportPublication_Rejects(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()
	for _, content := range []string{`{not json`, `{"status": "Em andamento"}`} {
		if _, _, err := svc.ImportPublication(ctx, json.RawMessage(content), "", ""); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("import %s: err = %v, want ErrInvalidInput", content, err)
		}
	}
}

func TestPublicationLifecycle_NoGoingBack(t *testing.T) {
	// WHAT: nova → pendente → atribuida, after which pendente is unreachable.
	// WHY: Assigned work must not drop back into the unassigned queue.
	svc, _, _ := setupTestService(t)
	ctx := context.Background()
	pub := importTestPublication(t, svc)

	opened, err := svc.OpenPublication(ctx, pub.ID)
	if err != nil || opened.Status != "pendente" {
		t.Fatalf("open: status=%v err=%v", opened, err)
	}
	assigned, err := svc.ApplyPublicationAction(ctx, pub.ID, "assign")
	if err != nil || assigned.Status != "atribuida" {
		t.Fatalf("assign: %v err=%v", assigned, err)
	}

	// Opening again is a no-op rather than a step back.
	again, err := svc.OpenPublication(ctx, pub.ID)
	if err != nil || again.Status != "atribuida" {
		t.Errorf("reopen: %v err=%v", again, err)
	}
	if _, err := svc.ApplyPublicationAction(ctx, pub.ID, "assign"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("assign twice err = %v, want ErrInvalidTransition", err)
	}
	if _, err := svc.ApplyPublicationAction(ctx, pub.ID, "reopen"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("unknown action err = %v, want ErrInvalidInput", err)
	}

	got, err := svc.GetPublication(ctx, pub.ID)
	if err != nil || got.Status != "atribuida" {
		t.Fatalf("stored status = %v err=%v", got, err)
	}

	done, err := svc.ApplyPublicationAction(ctx, pub.ID, "complete")
	if err != nil || done.Status != "finalizada" {
		t.Fatalf("complete: %v err=%v", done, err)
	}
	if _, err := svc.ApplyPublicationAction(ctx, pub.ID, "discard"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("discard after complete err = %v, want ErrInvalidTransition", err)
	}
}

func TestPublicationTags_RecomputedAtRead(t *testing.T) {
	// WHAT: Atenção disappears once the closing date has passed.
	// WHY: The marker depends on today's date, not the import date.
	svc, _, clk := setupTestService(t)
	pub := importTestPublication(t, svc)

	clk.Advance(20 * 24 * time.Hour)
	got, err := svc.GetPublication(context.Background(), pub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.DerivedTags) != 1 || got.DerivedTags[0] != "Em Processo" {
		t.Errorf("tags = %v, want [Em Processo]", got.DerivedTags)
	}
}

func TestListPublications_StatusFilter(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()
	pub := importTestPublication(t, svc)
	if _, err := svc.OpenPublication(ctx, pub.ID); err != nil {
		t.Fatal(err)
	}

	nova, err := svc.ListPublications(ctx, "nova", 0)
	if err != nil || len(nova) != 0 {
		t.Errorf("nova = %d err=%v", len(nova), err)
	}
	pend, err := svc.ListPublications(ctx, "pendente", 0)
	if err != nil || len(pend) != 1 {
		t.Errorf("pendente = %d err=%v", len(pend), err)
	}
	if _, err := svc.ListPublications(ctx, "archived", 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad status err = %v", err)
	}
	if _, err := svc.GetPublication(ctx, "pub_missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing err = %v", err)
	}
}

func TestPublicationActions_EventTrail(t *testing.T) {
	// WHAT: Import and each accepted or refused action leave a business event.
	// WHY: The inbox shows who moved a publication and from which state.
	ts := httptest.NewServer(newFakeBackend().handler())
	t.Cleanup(ts.Close)
	db := dbopen.OpenMemory(t)
	if err := observability.Init(db); err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.DiscardHandler)
	svc, err := New(db, &Config{BackendURL: ts.URL}, logger,
		WithEventLogger(observability.NewEventLogger(db, logger)))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { svc.Close() })
	ctx := context.Background()

	pub := importTestPublication(t, svc)
	for _, action := range []string{"open", "complete"} {
		if _, err := svc.ApplyPublicationAction(ctx, pub.ID, action); err != nil {
			t.Fatalf("%s: %v", action, err)
		}
	}
	if _, err := svc.ApplyPublicationAction(ctx, pub.ID, "discard"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("discard err = %v", err)
	}

	events, err := observability.ListEvents(ctx, db, "publication", pub.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	if events[3].Action != "import" || events[2].Action != "open" || events[1].Action != "complete" || !events[1].Success {
		t.Errorf("events = %+v", events)
	}
	if events[0].Action != "discard" || events[0].Success {
		t.Errorf("refused discard = %+v", events[0])
	}
}
