// CLAUDE:SUMMARY Business event trail: EventLogger writes domain events, ListEvents reads them back, Cleanup applies retention.
// CLAUDE:EXPORTS BusinessEvent, EventLogger, NewEventLogger, WithEventIDGenerator, WithEventClock, Event, ListEvents, RetentionConfig, Cleanup

// Package observability records what happened to publications and trackings
// in SQLite, next to the data it describes. Call Init on the *sql.DB first.
//
// Writes never fail the caller: errors are logged and dropped so a broken
// event table cannot block an inbox action.
package observability

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/jurimon/idgen"
)

// BusinessEvent represents a domain-level event to record.
type BusinessEvent struct {
	EventType   string
	ServiceName string
	EntityType  string
	EntityID    string
	UserID      string
	Action      string
	Details     string // optional JSON
	Success     bool
}

// EventLogger writes business events.
type EventLogger struct {
	db     *sql.DB
	newID  idgen.Generator
	now    func() time.Time
	logger *slog.Logger
}

// EventLoggerOption configures an EventLogger.
type EventLoggerOption func(*EventLogger)

// WithEventIDGenerator sets a custom ID generator for event IDs.
func WithEventIDGenerator(gen idgen.Generator) EventLoggerOption {
	return func(l *EventLogger) { l.newID = gen }
}

// WithEventClock replaces the wall clock used for created_at.
func WithEventClock(now func() time.Time) EventLoggerOption {
	return func(l *EventLogger) { l.now = now }
}

// NewEventLogger creates a logger backed by db. A nil logger uses slog.Default.
func NewEventLogger(db *sql.DB, logger *slog.Logger, opts ...EventLoggerOption) *EventLogger {
	if logger == nil {
		logger = slog.Default()
	}
	l := &EventLogger{
		db:     db,
		newID:  idgen.Event,
		now:    time.Now,
		logger: logger,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// LogEvent records a business event. Errors are logged, not returned.
func (l *EventLogger) LogEvent(ctx context.Context, event BusinessEvent) {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO business_event_logs (
			event_id, event_type, service_name, entity_type, entity_id,
			user_id, action, details, success, created_at
		) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		l.newID(), event.EventType, event.ServiceName, event.EntityType, event.EntityID,
		event.UserID, event.Action, event.Details, event.Success, l.now().UnixMilli())
	if err != nil {
		l.logger.Error("observability: event log failed", "error", err, "event_type", event.EventType)
	}
}

// Event is a stored business event.
type Event struct {
	ID          string    `json:"id"`
	EventType   string    `json:"event_type"`
	ServiceName string    `json:"service_name"`
	EntityType  string    `json:"entity_type,omitempty"`
	EntityID    string    `json:"entity_id,omitempty"`
	Action      string    `json:"action"`
	Details     string    `json:"details,omitempty"`
	Success     bool      `json:"success"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListEvents returns the newest events first. An empty entityType lists all
// events; an empty entityID lists all entities of that type. limit <= 0
// means 50.
func ListEvents(ctx context.Context, db *sql.DB, entityType, entityID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT event_id, event_type, service_name, COALESCE(entity_type,''), COALESCE(entity_id,''),
		action, COALESCE(details,''), success, created_at
		FROM business_event_logs WHERE 1=1`
	var args []any
	if entityType != "" {
		q += " AND entity_type = ?"
		args = append(args, entityType)
	}
	if entityID != "" {
		q += " AND entity_id = ?"
		args = append(args, entityID)
	}
	q += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var ms int64
		if err := rows.Scan(&e.ID, &e.EventType, &e.ServiceName, &e.EntityType, &e.EntityID,
			&e.Action, &e.Details, &e.Success, &ms); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.CreatedAt = time.UnixMilli(ms).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// RetentionConfig specifies per-table retention in days. Zero means no cleanup.
type RetentionConfig struct {
	EventLogsDays  int
	HeartbeatsDays int
	RunVacuumAfter bool
}

// Cleanup deletes records older than the retention thresholds, measured from now.
func Cleanup(ctx context.Context, db *sql.DB, cfg RetentionConfig, now time.Time) error {
	targets := []struct {
		query string
		days  int
	}{
		{"DELETE FROM business_event_logs WHERE created_at < ?", cfg.EventLogsDays},
		{"DELETE FROM worker_heartbeats WHERE timestamp < ?", cfg.HeartbeatsDays},
	}
	for _, t := range targets {
		if t.days <= 0 {
			continue
		}
		cutoff := now.AddDate(0, 0, -t.days).UnixMilli()
		if _, err := db.ExecContext(ctx, t.query, cutoff); err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
	}

	if cfg.RunVacuumAfter {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			return fmt.Errorf("vacuum: %w", err)
		}
	}
	return nil
}
