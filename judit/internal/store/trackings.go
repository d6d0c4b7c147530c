// CLAUDE:SUMMARY Tracking cache: single and batch upserts (one transaction), lookups, webhook timestamps.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazyhaar/jurimon/dbopen"
)

const trackingColumns = `tracking_id, search_type, search_key, recurrence, status,
	notification_emails, step_terms, with_attachments, hour_range,
	last_webhook_received_at, created_at, updated_at`

const upsertTrackingSQL = `INSERT INTO trackings (` + trackingColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(tracking_id) DO UPDATE SET
		search_type = excluded.search_type,
		search_key = excluded.search_key,
		recurrence = excluded.recurrence,
		status = excluded.status,
		notification_emails = excluded.notification_emails,
		step_terms = excluded.step_terms,
		with_attachments = excluded.with_attachments,
		hour_range = excluded.hour_range,
		last_webhook_received_at = COALESCE(excluded.last_webhook_received_at, trackings.last_webhook_received_at),
		updated_at = excluded.updated_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertTracking(ctx context.Context, ex execer, t *TrackingRow, now int64) error {
	if t.CreatedAt == 0 {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = "created"
	}
	if t.Recurrence == 0 {
		t.Recurrence = 1
	}
	_, err := ex.ExecContext(ctx, upsertTrackingSQL,
		t.TrackingID, t.SearchType, t.SearchKey, t.Recurrence, t.Status,
		encodeList(t.NotificationEmails), encodeList(t.StepTerms),
		boolInt(t.WithAttachments), t.HourRange, t.LastWebhookReceivedAt,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert tracking %s: %w", t.TrackingID, err)
	}
	return nil
}

// UpsertTracking inserts or overwrites one tracking.
func (s *Store) UpsertTracking(ctx context.Context, t *TrackingRow) error {
	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		return upsertTracking(ctx, tx, t, time.Now().UnixMilli())
	})
}

// UpsertTrackings applies a full list refresh in one transaction.
func (s *Store) UpsertTrackings(ctx context.Context, ts []*TrackingRow) error {
	now := time.Now().UnixMilli()
	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		for _, t := range ts {
			if err := upsertTracking(ctx, tx, t, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetTracking returns a tracking by ID, or nil.
func (s *Store) GetTracking(ctx context.Context, id string) (*TrackingRow, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+trackingColumns+` FROM trackings WHERE tracking_id = ?`, id)
	t, err := scanTracking(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// ListTrackings returns cached trackings, newest first. Deleted trackings
// are included only when withDeleted is set.
func (s *Store) ListTrackings(ctx context.Context, withDeleted bool) ([]*TrackingRow, error) {
	q := `SELECT ` + trackingColumns + ` FROM trackings`
	if !withDeleted {
		q += ` WHERE status <> 'deleted'`
	}
	q += ` ORDER BY created_at DESC, tracking_id`
	rows, err := s.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*TrackingRow
	for rows.Next() {
		t, err := scanTracking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TouchWebhook records the reception time of a webhook for a tracking.
// It reports whether the tracking is known.
func (s *Store) TouchWebhook(ctx context.Context, trackingID string, at int64) (bool, error) {
	res, err := dbopen.Exec(ctx, s.DB,
		`UPDATE trackings SET last_webhook_received_at = ?, updated_at = ? WHERE tracking_id = ?`,
		at, time.Now().UnixMilli(), trackingID)
	if err != nil {
		return false, fmt.Errorf("touch webhook %s: %w", trackingID, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// CountTrackingsByStatus returns the number of trackings per status.
func (s *Store) CountTrackingsByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM trackings GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		out[st] = n
	}
	return out, rows.Err()
}

func scanTracking(sc scanner) (*TrackingRow, error) {
	var t TrackingRow
	var emails, terms string
	var attachments int
	err := sc.Scan(&t.TrackingID, &t.SearchType, &t.SearchKey, &t.Recurrence, &t.Status,
		&emails, &terms, &attachments, &t.HourRange,
		&t.LastWebhookReceivedAt, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan tracking: %w", err)
	}
	t.NotificationEmails = decodeList(emails)
	t.StepTerms = decodeList(terms)
	t.WithAttachments = attachments != 0
	return &t, nil
}
