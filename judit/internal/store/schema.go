// CLAUDE:SUMMARY Applies the jurimon cache schema: requests, trackings, history pages, publications, webhook deliveries.
package store

import (
	"database/sql"

	"github.com/hazyhaar/jurimon/dbopen"
)

// Schema is the local cache of provider state plus the publication inbox.
const Schema = `
-- One-shot and on-demand requests, as last reported by the backend
CREATE TABLE IF NOT EXISTS requests (
    request_id      TEXT PRIMARY KEY,
    search_type     TEXT NOT NULL,
    search_key      TEXT NOT NULL,
    response_type   TEXT NOT NULL DEFAULT 'lawsuit',
    status          TEXT NOT NULL DEFAULT 'created',
    on_demand       INTEGER NOT NULL DEFAULT 0,
    result_json     TEXT NOT NULL DEFAULT '',
    created_at      INTEGER NOT NULL,
    updated_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_requests_search ON requests(search_type, search_key);
CREATE INDEX IF NOT EXISTS idx_requests_created ON requests(created_at DESC);

-- Recurring trackings
CREATE TABLE IF NOT EXISTS trackings (
    tracking_id              TEXT PRIMARY KEY,
    search_type              TEXT NOT NULL,
    search_key               TEXT NOT NULL,
    recurrence               INTEGER NOT NULL DEFAULT 1,
    status                   TEXT NOT NULL DEFAULT 'created',
    notification_emails      TEXT NOT NULL DEFAULT '[]',
    step_terms               TEXT NOT NULL DEFAULT '[]',
    with_attachments         INTEGER NOT NULL DEFAULT 0,
    hour_range               INTEGER NOT NULL DEFAULT 0,
    last_webhook_received_at INTEGER,
    created_at               INTEGER NOT NULL,
    updated_at               INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trackings_status ON trackings(status);

-- Tracking history pages, one row per (tracking, page, size)
CREATE TABLE IF NOT EXISTS history_pages (
    tracking_id  TEXT NOT NULL,
    page         INTEGER NOT NULL,
    page_size    INTEGER NOT NULL,
    body_json    TEXT NOT NULL,
    fetched_at   INTEGER NOT NULL,
    PRIMARY KEY (tracking_id, page, page_size)
);

-- Publication inbox
CREATE TABLE IF NOT EXISTS publications (
    id               TEXT PRIMARY KEY,
    dedup_key        TEXT NOT NULL UNIQUE,
    publication_date INTEGER,
    process_number   TEXT NOT NULL DEFAULT '',
    court            TEXT NOT NULL DEFAULT '',
    searched_name    TEXT NOT NULL DEFAULT '',
    document         TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL DEFAULT 'nova',
    content          TEXT NOT NULL DEFAULT '',
    tags             TEXT NOT NULL DEFAULT '[]',
    tracking_id      TEXT NOT NULL DEFAULT '',
    created_at       INTEGER NOT NULL,
    updated_at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_publications_status ON publications(status, created_at DESC);

-- Webhook deliveries (raw, for replay and audit)
CREATE TABLE IF NOT EXISTS webhook_deliveries (
    id           TEXT PRIMARY KEY,
    tracking_id  TEXT NOT NULL DEFAULT '',
    event_type   TEXT NOT NULL DEFAULT '',
    payload      TEXT NOT NULL,
    verified     INTEGER NOT NULL DEFAULT 0,
    received_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_webhook_tracking ON webhook_deliveries(tracking_id, received_at DESC);
`

// Migration001AISummary records whether a request asked for the AI summary.
const Migration001AISummary = `
ALTER TABLE requests ADD COLUMN ai_summary INTEGER NOT NULL DEFAULT 0;
`

// Migration002PublicationRequest links publications derived from a request.
const Migration002PublicationRequest = `
ALTER TABLE publications ADD COLUMN request_id TEXT NOT NULL DEFAULT '';
`

// ApplySchema creates all tables and indexes, then applies column migrations.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return err
	}
	if err := dbopen.EnsureColumn(db, "requests", "ai_summary", Migration001AISummary); err != nil {
		return err
	}
	return dbopen.EnsureColumn(db, "publications", "request_id", Migration002PublicationRequest)
}
