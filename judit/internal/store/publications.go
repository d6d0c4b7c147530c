// CLAUDE:SUMMARY Publication inbox (dedup on insert, compare-and-set status) and raw webhook delivery log.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazyhaar/jurimon/dbopen"
)

const publicationColumns = `id, dedup_key, publication_date, process_number, court,
	searched_name, document, status, content, tags, tracking_id, request_id,
	created_at, updated_at`

// InsertPublication adds a publication unless one with the same DedupKey
// exists. It reports whether a row was inserted.
func (s *Store) InsertPublication(ctx context.Context, p *PublicationRow) (bool, error) {
	now := time.Now().UnixMilli()
	if p.CreatedAt == 0 {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = "nova"
	}
	res, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO publications (`+publicationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dedup_key) DO NOTHING`,
		p.ID, p.DedupKey, p.PublicationDate, p.ProcessNumber, p.Court,
		p.SearchedName, p.Document, p.Status, p.Content, encodeList(p.Tags),
		p.TrackingID, p.RequestID, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert publication: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// GetPublication returns a publication by ID, or nil.
func (s *Store) GetPublication(ctx context.Context, id string) (*PublicationRow, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+publicationColumns+` FROM publications WHERE id = ?`, id)
	p, err := scanPublication(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// ListPublications returns publications, newest first.
func (s *Store) ListPublications(ctx context.Context, f PublicationFilter) ([]*PublicationRow, error) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT ` + publicationColumns + ` FROM publications`
	var args []any
	if f.Status != "" {
		q += ` WHERE status = ?`
		args = append(args, f.Status)
	}
	q += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*PublicationRow
	for rows.Next() {
		p, err := scanPublication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdatePublicationStatus moves a publication from one status to another.
// It returns ErrStaleStatus when the stored status is no longer from.
func (s *Store) UpdatePublicationStatus(ctx context.Context, id, from, to string) error {
	res, err := dbopen.Exec(ctx, s.DB,
		`UPDATE publications SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, time.Now().UnixMilli(), id, from)
	if err != nil {
		return fmt.Errorf("update publication %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStaleStatus
	}
	return nil
}

func scanPublication(sc scanner) (*PublicationRow, error) {
	var p PublicationRow
	var tags string
	err := sc.Scan(&p.ID, &p.DedupKey, &p.PublicationDate, &p.ProcessNumber, &p.Court,
		&p.SearchedName, &p.Document, &p.Status, &p.Content, &tags, &p.TrackingID, &p.RequestID,
		&p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan publication: %w", err)
	}
	p.Tags = decodeList(tags)
	return &p, nil
}

// InsertWebhookDelivery logs a raw webhook body.
func (s *Store) InsertWebhookDelivery(ctx context.Context, d *WebhookDelivery) error {
	if d.ReceivedAt == 0 {
		d.ReceivedAt = time.Now().UnixMilli()
	}
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO webhook_deliveries (id, tracking_id, event_type, payload, verified, received_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.TrackingID, d.EventType, d.Payload, boolInt(d.Verified), d.ReceivedAt)
	if err != nil {
		return fmt.Errorf("insert webhook delivery: %w", err)
	}
	return nil
}

// ListWebhookDeliveries returns the latest deliveries, optionally for one
// tracking.
func (s *Store) ListWebhookDeliveries(ctx context.Context, trackingID string, limit int) ([]*WebhookDelivery, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT id, tracking_id, event_type, payload, verified, received_at FROM webhook_deliveries`
	var args []any
	if trackingID != "" {
		q += ` WHERE tracking_id = ?`
		args = append(args, trackingID)
	}
	q += ` ORDER BY received_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*WebhookDelivery
	for rows.Next() {
		var d WebhookDelivery
		var verified int
		if err := rows.Scan(&d.ID, &d.TrackingID, &d.EventType, &d.Payload, &verified, &d.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan webhook delivery: %w", err)
		}
		d.Verified = verified != 0
		out = append(out, &d)
	}
	return out, rows.Err()
}
