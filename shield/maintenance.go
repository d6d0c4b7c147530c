package shield

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

const defaultMaintenanceMessage = "Maintenance in progress."

// MaintenanceMode answers 503 on every non-excluded path while the flag in
// the maintenance table is set. The flag is cached in memory and re-read by
// Reload, which the poller runs on each tick.
type MaintenanceMode struct {
	db      *sql.DB
	logger  *slog.Logger
	active  atomic.Bool
	message atomic.Value // string
	exclude []string
}

// NewMaintenanceMode creates a checker and loads the flag once. Paths
// matching any of excludePrefixes are never blocked.
func NewMaintenanceMode(db *sql.DB, logger *slog.Logger, excludePrefixes ...string) *MaintenanceMode {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MaintenanceMode{db: db, logger: logger, exclude: excludePrefixes}
	m.message.Store(defaultMaintenanceMessage)
	m.Reload(context.Background())
	return m
}

// Active reports whether maintenance mode is currently on.
func (m *MaintenanceMode) Active() bool { return m.active.Load() }

// Message returns the current maintenance message.
func (m *MaintenanceMode) Message() string {
	s, _ := m.message.Load().(string)
	return s
}

// Reload re-reads the flag. A missing table or row means off.
func (m *MaintenanceMode) Reload(ctx context.Context) error {
	var active int
	var message string
	err := m.db.QueryRowContext(ctx, `SELECT active, message FROM maintenance WHERE id = 1`).Scan(&active, &message)
	if err != nil {
		if m.active.Load() {
			m.logger.Info("maintenance: flag cleared (table missing or empty)")
		}
		m.active.Store(false)
		return nil
	}

	was := m.active.Swap(active == 1)
	if message != "" {
		m.message.Store(message)
	}
	switch {
	case active == 1 && !was:
		m.logger.Warn("maintenance: mode enabled", "message", message)
	case active != 1 && was:
		m.logger.Info("maintenance: mode disabled")
	}
	return nil
}

// SetMaintenance writes the flag. Running instances pick it up on their
// next Reload.
func SetMaintenance(ctx context.Context, db *sql.DB, active bool, message string) error {
	if message == "" {
		message = defaultMaintenanceMessage
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO maintenance (id, active, message, updated_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET active = excluded.active, message = excluded.message, updated_at = excluded.updated_at`,
		active, message, time.Now().UnixMilli())
	return err
}

// Middleware blocks requests with a JSON 503 while maintenance is on.
func (m *MaintenanceMode) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.active.Load() {
			next.ServeHTTP(w, r)
			return
		}
		for _, prefix := range m.exclude {
			if strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "300")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": m.Message()})
	})
}
