// CLAUDE:SUMMARY Publication inbox: import with dedup and derived tags, listing, and status actions through the publication state machine.
package judit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/jurimon/judit/internal/lifecycle"
	"github.com/hazyhaar/jurimon/judit/internal/normalize"
	"github.com/hazyhaar/jurimon/judit/internal/store"
	"github.com/hazyhaar/jurimon/telemetry"
)

// maxStatusRetries bounds the compare-and-set loop of a status action.
const maxStatusRetries = 3

// ImportPublication derives a publication from a lawsuit content blob and
// adds it to the inbox as nova. The same content for the same process and
// date is imported once; created reports whether this call added it.
func (svc *Service) ImportPublication(ctx context.Context, content json.RawMessage, trackingID, requestID string) (pub *Publication, created bool, err error) {
	if !json.Valid(content) {
		return nil, false, fmt.Errorf("%w: publication content is not valid JSON", ErrInvalidInput)
	}
	now := svc.now()
	d := normalize.DerivePublication(content, now)
	if d.ProcessNumber == "" {
		return nil, false, fmt.Errorf("%w: publication has no process number", ErrInvalidInput)
	}

	row := &store.PublicationRow{
		ID:            svc.newPubID(),
		DedupKey:      dedupKey(d, content),
		ProcessNumber: d.ProcessNumber,
		Court:         d.Court,
		SearchedName:  d.SearchedName,
		Document:      d.Document,
		Status:        string(lifecycle.PublicationNova),
		Content:       string(content),
		Tags:          d.Tags(),
		TrackingID:    trackingID,
		RequestID:     requestID,
	}
	if d.PublicationDate != nil {
		ms := d.PublicationDate.UnixMilli()
		row.PublicationDate = &ms
	}
	inserted, err := svc.store.InsertPublication(ctx, row)
	if err != nil {
		return nil, false, fmt.Errorf("judit: %w", err)
	}
	if inserted {
		telemetry.PublicationsCreated.Inc()
		svc.logEvent(ctx, "publication", row.ID, "import", true,
			fmt.Sprintf(`{"process_number":%q,"tracking_id":%q}`, d.ProcessNumber, trackingID))
		return svc.publicationFromRow(row), true, nil
	}
	return nil, false, nil
}

func dedupKey(d normalize.DerivedPublication, content []byte) string {
	date := ""
	if d.PublicationDate != nil {
		date = d.PublicationDate.UTC().Format(time.DateOnly)
	}
	sum := sha256.Sum256(content)
	return d.ProcessNumber + "|" + date + "|" + hex.EncodeToString(sum[:8])
}

// ListPublications returns inbox entries, newest first. An empty status
// lists every status.
func (svc *Service) ListPublications(ctx context.Context, status string, limit int) ([]*Publication, error) {
	if status != "" && !lifecycle.PublicationStatus(status).Valid() {
		return nil, fmt.Errorf("%w: unknown publication status %q", ErrInvalidInput, status)
	}
	rows, err := svc.store.ListPublications(ctx, store.PublicationFilter{Status: status, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("judit: %w", err)
	}
	out := make([]*Publication, 0, len(rows))
	for _, r := range rows {
		out = append(out, svc.publicationFromRow(r))
	}
	return out, nil
}

// GetPublication returns one inbox entry.
func (svc *Service) GetPublication(ctx context.Context, id string) (*Publication, error) {
	row, err := svc.publicationRow(ctx, id)
	if err != nil {
		return nil, err
	}
	return svc.publicationFromRow(row), nil
}

// OpenPublication returns the publication and marks it pendente when it is
// still nova. Failing to mark it does not fail the open.
func (svc *Service) OpenPublication(ctx context.Context, id string) (*Publication, error) {
	row, err := svc.publicationRow(ctx, id)
	if err != nil {
		return nil, err
	}
	pub, err := svc.ApplyPublicationAction(ctx, id, string(lifecycle.ActionOpen))
	if err != nil {
		svc.logger.WarnContext(ctx, "judit: mark publication pendente", "publication_id", id, "error", err)
		return svc.publicationFromRow(row), nil
	}
	return pub, nil
}

// ApplyPublicationAction moves a publication through its state machine:
// open, assign, complete or discard. Transitions absent from the table are
// rejected with ErrInvalidTransition.
func (svc *Service) ApplyPublicationAction(ctx context.Context, id, action string) (*Publication, error) {
	act, ok := lifecycle.ParsePublicationAction(action)
	if !ok {
		return nil, fmt.Errorf("%w: unknown publication action %q", ErrInvalidInput, action)
	}
	for range maxStatusRetries {
		row, err := svc.publicationRow(ctx, id)
		if err != nil {
			return nil, err
		}
		from := lifecycle.PublicationStatus(row.Status)
		next, changed, err := from.Apply(act)
		if err != nil {
			svc.logEvent(ctx, "publication", id, string(act), false, fmt.Sprintf(`{"from":%q}`, from))
			return nil, fmt.Errorf("%w: %w", ErrInvalidTransition, err)
		}
		if !changed {
			return svc.publicationFromRow(row), nil
		}
		err = svc.store.UpdatePublicationStatus(ctx, id, string(from), string(next))
		if errors.Is(err, store.ErrStaleStatus) {
			// Someone else moved it; re-read and re-check against the table.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("judit: %w", err)
		}
		svc.logEvent(ctx, "publication", id, string(act), true, fmt.Sprintf(`{"from":%q,"to":%q}`, from, next))
		row.Status = string(next)
		row.UpdatedAt = svc.now().UnixMilli()
		return svc.publicationFromRow(row), nil
	}
	return nil, fmt.Errorf("%w: publication %s changed concurrently", ErrInvalidTransition, id)
}

func (svc *Service) publicationRow(ctx context.Context, id string) (*store.PublicationRow, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	row, err := svc.store.GetPublication(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("judit: %w", err)
	}
	if row == nil {
		return nil, fmt.Errorf("%w: publication %s", ErrNotFound, id)
	}
	return row, nil
}

// publicationFromRow recomputes the tags from the content: Atenção depends
// on today's date.
func (svc *Service) publicationFromRow(r *store.PublicationRow) *Publication {
	p := &Publication{
		ID:              r.ID,
		PublicationDate: timePtr(r.PublicationDate),
		ProcessNumber:   r.ProcessNumber,
		Court:           r.Court,
		SearchedName:    r.SearchedName,
		Document:        r.Document,
		Status:          r.Status,
		Content:         r.Content,
		DerivedTags:     r.Tags,
		TrackingID:      r.TrackingID,
		RequestID:       r.RequestID,
		CreatedAt:       fromMillis(r.CreatedAt),
		UpdatedAt:       fromMillis(r.UpdatedAt),
	}
	if r.Content != "" {
		d := normalize.DerivePublication(json.RawMessage(r.Content), svc.now())
		p.DerivedTags = d.Tags()
		p.DataEncerramento = d.DataEncerramento
	}
	if p.DerivedTags == nil {
		p.DerivedTags = []string{}
	}
	return p
}
