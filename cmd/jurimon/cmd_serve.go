package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/jurimon/judit"
	"github.com/hazyhaar/jurimon/shield"
	"github.com/hazyhaar/jurimon/telemetry"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, webhook receiver, MCP endpoint and poller",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogging(cfg.LogLevel)
	telemetry.Register()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	// close waits for the poller before closing the databases.
	defer a.close()

	mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "jurimon", Version: "1.0.0"}, nil)
	a.svc.RegisterMCP(mcpSrv)

	maint := shield.NewMaintenanceMode(a.db, logger, "/health", "/metrics")
	portal := shield.NewRateLimiter(shield.RateLimitConfig{
		RequestsPerMinute: cfg.Portal.RequestsPerMinute,
		Burst:             cfg.Portal.Burst,
	}, logger, nil)

	s := &server{
		svc:    a.svc,
		db:     a.db,
		mcp:    mcpSrv,
		portal: portal,
		maint:  maint,
		logger: logger,
		now:    time.Now,
	}
	if cfg.Scheduler.Enabled {
		s.pollEvery = cfg.Scheduler.Interval
		tasks := a.pollTasks(maint, portal)
		a.goBackground(ctx, func(ctx context.Context) {
			a.svc.RunPoller(ctx, judit.PollerConfig{
				Interval:     cfg.Scheduler.Interval,
				MaxFailCount: cfg.Scheduler.MaxFailCount,
			}, tasks...)
		})
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.Listen, "backend", cfg.Backend.BaseURL, "scheduler", cfg.Scheduler.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.Listen, err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("server stopped")
	return nil
}
