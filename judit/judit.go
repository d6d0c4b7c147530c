// CLAUDE:SUMMARY Service orchestrator: wires backend client, cache store, cooldown limiter and event log; shared upstream-error and resync helpers.
// CLAUDE:EXPORTS Service, New, Config, ServiceOption, WithClock, WithHTTPClient, WithRedisCooldown, WithEventLogger
// Package judit is the legal-process monitoring core. It calls the backend
// that proxies the judicial-data provider, normalizes what comes back,
// caches it in SQLite and gates manual refreshes behind a cooldown window.
package judit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hazyhaar/jurimon/idgen"
	"github.com/hazyhaar/jurimon/judit/internal/client"
	"github.com/hazyhaar/jurimon/judit/internal/cooldown"
	"github.com/hazyhaar/jurimon/judit/internal/store"
	"github.com/hazyhaar/jurimon/kit"
	"github.com/hazyhaar/jurimon/observability"
	"github.com/hazyhaar/jurimon/telemetry"
)

// Config configures the service.
type Config struct {
	BackendURL       string
	BackendToken     string
	BackendTimeout   time.Duration
	BackendRetries   int
	BreakerThreshold int
	BreakerReset     time.Duration

	// CooldownWindow defaults to 30s.
	CooldownWindow time.Duration

	// WebhookSecret enables HMAC verification of webhook deliveries. When
	// empty, deliveries are accepted and stored as unverified.
	WebhookSecret string
}

func (c *Config) defaults() {
	if c.BackendTimeout <= 0 {
		c.BackendTimeout = 20 * time.Second
	}
	if c.BackendRetries < 0 {
		c.BackendRetries = 0
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = 5
	}
	if c.BreakerReset <= 0 {
		c.BreakerReset = 30 * time.Second
	}
	if c.CooldownWindow <= 0 {
		c.CooldownWindow = cooldown.DefaultWindow
	}
}

// Service is safe for concurrent use.
type Service struct {
	backend  *client.Client
	store    *store.Store
	limiter  *cooldown.Limiter
	events   *observability.EventLogger
	logger   *slog.Logger
	config   *Config
	now      func() time.Time
	newPubID idgen.Generator
	newWhkID idgen.Generator

	httpClient    *http.Client
	cooldownStore cooldown.Store
}

// ServiceOption configures a Service during creation.
type ServiceOption func(*Service)

// WithClock replaces the wall clock for the service and its cooldown limiter.
func WithClock(now func() time.Time) ServiceOption {
	return func(svc *Service) { svc.now = now }
}

// WithHTTPClient sets the HTTP client used for backend calls.
func WithHTTPClient(c *http.Client) ServiceOption {
	return func(svc *Service) { svc.httpClient = c }
}

// WithRedisCooldown keeps cooldown marks in Redis instead of SQLite, so that
// several instances behind a load balancer share them.
func WithRedisCooldown(rdb *redis.Client, prefix string, ttl time.Duration) ServiceOption {
	return func(svc *Service) { svc.cooldownStore = cooldown.NewRedisStore(rdb, prefix, ttl) }
}

// WithEventLogger records publication and tracking actions in the business
// event log.
func WithEventLogger(l *observability.EventLogger) ServiceOption {
	return func(svc *Service) { svc.events = l }
}

// New creates the service over db, applying the cache schema.
func New(db *sql.DB, cfg *Config, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	if err := store.ApplySchema(db); err != nil {
		return nil, fmt.Errorf("judit: %w", err)
	}

	svc := &Service{
		store:    store.NewStore(db),
		logger:   logger,
		config:   cfg,
		now:      time.Now,
		newPubID: idgen.Publication,
		newWhkID: idgen.Delivery,
	}
	for _, opt := range opts {
		opt(svc)
	}

	if svc.cooldownStore == nil {
		st, err := cooldown.NewSQLiteStore(db)
		if err != nil {
			return nil, fmt.Errorf("judit: %w", err)
		}
		svc.cooldownStore = st
	}
	svc.limiter = cooldown.New(svc.cooldownStore,
		cooldown.WithClock(cooldown.ClockFunc(svc.now)),
		cooldown.WithWindow(cfg.CooldownWindow))

	backend, err := client.New(client.Config{
		BaseURL:    cfg.BackendURL,
		Token:      cfg.BackendToken,
		Timeout:    cfg.BackendTimeout,
		MaxRetries: cfg.BackendRetries,
		HTTPClient: svc.httpClient,
		Breaker: client.NewBreaker(
			client.WithBreakerThreshold(cfg.BreakerThreshold),
			client.WithBreakerResetTimeout(cfg.BreakerReset)),
		Logger:   logger,
		Observer: telemetry.ObserveUpstream,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	svc.backend = backend
	return svc, nil
}

// Close releases nothing today; it exists so callers can defer it.
func (svc *Service) Close() error {
	svc.logger.Info("judit: closed")
	return nil
}

// upstream classifies a backend error. A 404 becomes ErrNotFound and an
// unsafe identifier ErrInvalidInput; everything else is ErrUpstream.
func upstream(op string, err error) error {
	switch {
	case errors.Is(err, client.ErrInvalidID):
		return fmt.Errorf("%w: %s: %w", ErrInvalidInput, op, err)
	case client.StatusOf(err) == http.StatusNotFound:
		return fmt.Errorf("%w: %s: %w", ErrNotFound, op, err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrUpstream, op, err)
	}
}

// acquire takes the cooldown for key or returns a *CooldownError.
func (svc *Service) acquire(ctx context.Context, scope, key string) error {
	d, err := svc.limiter.Acquire(ctx, key)
	if err != nil {
		return fmt.Errorf("judit: %w", err)
	}
	if !d.Allowed {
		telemetry.CooldownRejects.WithLabelValues(scope).Inc()
		svc.logger.InfoContext(ctx, "judit: cooldown refused",
			"key", key,
			"remaining_ms", d.Remaining.Milliseconds(),
			"transport", kit.GetTransport(ctx),
			"remote_addr", kit.GetRemoteAddr(ctx),
			"public", kit.IsPublic(ctx))
		return &CooldownError{Key: key, Remaining: d.Remaining}
	}
	return nil
}

// CooldownRemaining returns how long key stays locked. Only keys in one of
// the cooldown namespaces are accepted.
func (svc *Service) CooldownRemaining(ctx context.Context, key string) (time.Duration, error) {
	if !cooldown.KnownKey(key) {
		return 0, fmt.Errorf("%w: unknown cooldown key %q", ErrInvalidInput, key)
	}
	r, err := svc.limiter.Remaining(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("judit: %w", err)
	}
	return r, nil
}

// CooldownWindow returns the configured window.
func (svc *Service) CooldownWindow() time.Duration { return svc.limiter.Window() }

// live reports whether results may still be applied for ctx. A caller that
// went away must not overwrite state with a superseded answer.
func live(ctx context.Context) bool { return ctx.Err() == nil }

func (svc *Service) logEvent(ctx context.Context, entityType, entityID, action string, success bool, details string) {
	if svc.events == nil {
		return
	}
	svc.events.LogEvent(ctx, observability.BusinessEvent{
		EventType:   entityType + "." + action,
		ServiceName: "judit",
		EntityType:  entityType,
		EntityID:    entityID,
		Action:      action,
		Details:     details,
		Success:     success,
	})
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
