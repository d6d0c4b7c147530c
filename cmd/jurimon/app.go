package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hazyhaar/jurimon/config"
	"github.com/hazyhaar/jurimon/dbopen"
	"github.com/hazyhaar/jurimon/judit"
	"github.com/hazyhaar/jurimon/observability"
	"github.com/hazyhaar/jurimon/shield"
	"github.com/hazyhaar/jurimon/trace"

	_ "modernc.org/sqlite"
)

// app is the wired service with everything it owns. close stops the
// background goroutines, then releases the rest in reverse order.
type app struct {
	cfg        *config.Config
	db         *sql.DB
	traceDB    *sql.DB
	traceStore *trace.Store
	rdb        *redis.Client
	svc        *judit.Service
	logger     *slog.Logger

	bgMu     sync.Mutex
	bg       sync.WaitGroup
	bgCancel []context.CancelFunc
}

// openApp opens the databases, applies every schema and builds the service.
func openApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	driver := "sqlite"
	if cfg.Trace.Enabled {
		// The trace database itself uses the raw driver or it would trace its own inserts.
		// Losing the last traces on a crash is acceptable.
		traceDB, err := dbopen.Open(cfg.Trace.DBPath,
			dbopen.WithMkdirAll(),
			dbopen.WithSynchronous("OFF"),
			dbopen.WithoutForeignKeys())
		if err != nil {
			return nil, fmt.Errorf("trace db: %w", err)
		}
		a.traceDB = traceDB
		a.traceStore = trace.NewStore(traceDB, logger)
		if err := a.traceStore.Init(); err != nil {
			return nil, fmt.Errorf("trace init: %w", err)
		}
		trace.SetStore(a.traceStore)
		trace.SetSlowThreshold(cfg.Trace.SlowThreshold)
		driver = trace.DriverName
	}

	db, err := dbopen.Open(cfg.DBPath,
		dbopen.WithMkdirAll(),
		dbopen.WithDriver(driver),
		dbopen.WithSchema(observability.Schema),
		dbopen.WithSchema(shield.Schema))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBPath, err)
	}
	a.db = db

	opts := []judit.ServiceOption{
		judit.WithEventLogger(observability.NewEventLogger(db, logger)),
	}
	if cfg.Cooldown.Backend == "redis" {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.rdb.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
		opts = append(opts, judit.WithRedisCooldown(a.rdb, cfg.Cooldown.Prefix, cfg.Cooldown.Window))
	}

	svc, err := judit.New(db, &judit.Config{
		BackendURL:       cfg.Backend.BaseURL,
		BackendToken:     cfg.Backend.Token,
		BackendTimeout:   cfg.Backend.Timeout,
		BackendRetries:   cfg.Backend.Retries,
		BreakerThreshold: cfg.Backend.BreakerThreshold,
		BreakerReset:     cfg.Backend.BreakerReset,
		CooldownWindow:   cfg.Cooldown.Window,
		WebhookSecret:    cfg.Webhook.Secret,
	}, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("judit service: %w", err)
	}
	a.svc = svc
	ok = true
	return a, nil
}

// goBackground runs fn in a goroutine that close cancels and waits for
// before it closes the databases fn may still be using.
func (a *app) goBackground(ctx context.Context, fn func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(ctx)
	a.bgMu.Lock()
	a.bgCancel = append(a.bgCancel, cancel)
	a.bgMu.Unlock()
	a.bg.Add(1)
	go func() {
		defer a.bg.Done()
		fn(ctx)
	}()
}

func (a *app) close() error {
	a.bgMu.Lock()
	for _, cancel := range a.bgCancel {
		cancel()
	}
	a.bgCancel = nil
	a.bgMu.Unlock()
	a.bg.Wait()

	var errs []error
	if a.svc != nil {
		errs = append(errs, a.svc.Close())
	}
	if a.rdb != nil {
		errs = append(errs, a.rdb.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.traceStore != nil {
		trace.SetStore(nil)
		errs = append(errs, a.traceStore.Close())
	}
	if a.traceDB != nil {
		errs = append(errs, a.traceDB.Close())
	}
	return errors.Join(errs...)
}

// pollTasks are the housekeeping jobs the poller runs next to the cache
// refreshes.
func (a *app) pollTasks(maint *shield.MaintenanceMode, portal *shield.RateLimiter) []judit.PollTask {
	hb := observability.NewHeartbeatWriter(a.db, pollerWorker, nil)
	retention := observability.RetentionConfig{
		EventLogsDays:  a.cfg.Retention.EventDays,
		HeartbeatsDays: a.cfg.Retention.HeartbeatDays,
	}
	tasks := []judit.PollTask{
		{Name: "heartbeat", Run: hb.Beat},
		{Name: "maintenance", Run: maint.Reload},
		{Name: "retention", Run: func(ctx context.Context) error {
			return observability.Cleanup(ctx, a.db, retention, time.Now())
		}},
		{Name: "portal-gc", Run: func(context.Context) error {
			if n := portal.GC(); n > 0 {
				a.logger.Debug("ratelimit: buckets dropped", "count", n)
			}
			return nil
		}},
	}
	if a.traceStore != nil && a.cfg.Retention.HeartbeatDays > 0 {
		tasks = append(tasks, judit.PollTask{Name: "trace-prune", Run: func(ctx context.Context) error {
			_, err := a.traceStore.Prune(ctx, time.Now().AddDate(0, 0, -a.cfg.Retention.HeartbeatDays))
			return err
		}})
	}
	return tasks
}
