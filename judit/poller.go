// CLAUDE:SUMMARY Background poller: keeps the request and tracking caches in sync between user actions.
package judit

import (
	"context"
	"time"

	"github.com/hazyhaar/jurimon/judit/internal/scheduler"
	"github.com/hazyhaar/jurimon/kit"
)

// PollTask is an extra periodic job run alongside the cache refreshes.
type PollTask = scheduler.Task

// PollerConfig configures RunPoller.
type PollerConfig struct {
	Interval     time.Duration
	MaxFailCount int
}

// SyncRequests is one request list refresh.
func (svc *Service) SyncRequests(ctx context.Context) error {
	return svc.syncRequests(ctx)
}

// RunPoller refreshes trackings and requests every interval, plus any extra
// tasks. Blocks until ctx is cancelled.
func (svc *Service) RunPoller(ctx context.Context, cfg PollerConfig, extra ...PollTask) {
	tasks := append([]PollTask{
		{Name: "trackings", Run: svc.SyncTrackings},
		{Name: "requests", Run: svc.SyncRequests},
	}, extra...)
	for i, t := range tasks {
		tasks[i].Run = pollTask(t)
	}
	svc.logger.Info("judit: poller started", "interval", cfg.Interval, "tasks", len(tasks))
	scheduler.New(tasks, scheduler.Config{
		CheckInterval: cfg.Interval,
		MaxFailCount:  cfg.MaxFailCount,
	}, svc.logger).Run(ctx)
	svc.logger.Info("judit: poller stopped")
}

// pollTask tags a task's context as the "poll_<name>" operation on the
// poller transport.
func pollTask(t PollTask) func(context.Context) error {
	return func(ctx context.Context) error {
		ctx = kit.WithOperation(kit.WithTransport(ctx, "poller"), "poll_"+t.Name)
		return t.Run(ctx)
	}
}
