// CLAUDE:SUMMARY Request and history-page cache: idempotent upserts (last applied wins), lookups and listing.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazyhaar/jurimon/dbopen"
)

const requestColumns = `request_id, search_type, search_key, response_type, status,
	on_demand, ai_summary, result_json, created_at, updated_at`

// UpsertRequest inserts or overwrites a request. An empty ResultJSON keeps
// the cached result, since list endpoints omit results.
func (s *Store) UpsertRequest(ctx context.Context, r *RequestRow) error {
	now := time.Now().UnixMilli()
	if r.CreatedAt == 0 {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	if r.ResponseType == "" {
		r.ResponseType = "lawsuit"
	}
	if r.Status == "" {
		r.Status = "created"
	}
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(request_id) DO UPDATE SET
			search_type = excluded.search_type,
			search_key = excluded.search_key,
			response_type = excluded.response_type,
			status = excluded.status,
			on_demand = excluded.on_demand,
			ai_summary = MAX(requests.ai_summary, excluded.ai_summary),
			result_json = CASE WHEN excluded.result_json <> '' THEN excluded.result_json ELSE requests.result_json END,
			updated_at = excluded.updated_at`,
		r.RequestID, r.SearchType, r.SearchKey, r.ResponseType, r.Status,
		boolInt(r.OnDemand), boolInt(r.AISummary), r.ResultJSON, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert request %s: %w", r.RequestID, err)
	}
	return nil
}

// GetRequest returns a request by ID, or nil if it is not cached.
func (s *Store) GetRequest(ctx context.Context, id string) (*RequestRow, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE request_id = ?`, id)
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// ListRequests returns cached requests, newest first.
func (s *Store) ListRequests(ctx context.Context, limit int) ([]*RequestRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM requests ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*RequestRow
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(sc scanner) (*RequestRow, error) {
	var r RequestRow
	var onDemand, aiSummary int
	err := sc.Scan(&r.RequestID, &r.SearchType, &r.SearchKey, &r.ResponseType, &r.Status,
		&onDemand, &aiSummary, &r.ResultJSON, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan request: %w", err)
	}
	r.OnDemand = onDemand != 0
	r.AISummary = aiSummary != 0
	return &r, nil
}

// SaveHistoryPage stores the latest body for a (tracking, page, size).
func (s *Store) SaveHistoryPage(ctx context.Context, p *HistoryPage) error {
	if p.FetchedAt == 0 {
		p.FetchedAt = time.Now().UnixMilli()
	}
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO history_pages (tracking_id, page, page_size, body_json, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(tracking_id, page, page_size) DO UPDATE SET
			body_json = excluded.body_json, fetched_at = excluded.fetched_at`,
		p.TrackingID, p.Page, p.PageSize, p.BodyJSON, p.FetchedAt)
	if err != nil {
		return fmt.Errorf("save history page %s/%d: %w", p.TrackingID, p.Page, err)
	}
	return nil
}

// GetHistoryPage returns a cached page, or nil.
func (s *Store) GetHistoryPage(ctx context.Context, trackingID string, page, pageSize int) (*HistoryPage, error) {
	var p HistoryPage
	err := s.DB.QueryRowContext(ctx,
		`SELECT tracking_id, page, page_size, body_json, fetched_at
		FROM history_pages WHERE tracking_id = ? AND page = ? AND page_size = ?`,
		trackingID, page, pageSize,
	).Scan(&p.TrackingID, &p.Page, &p.PageSize, &p.BodyJSON, &p.FetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get history page: %w", err)
	}
	return &p, nil
}
