// CLAUDE:SUMMARY Periodic sync loop: runs named tasks on a ticker, backs off a task after repeated failures.
// Package scheduler runs the background resynchronization of the cache.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task is one periodic job, such as a tracking list refresh.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Config configures the scheduler.
type Config struct {
	// CheckInterval is the tick period. Default: 5 minutes.
	CheckInterval time.Duration
	// MaxFailCount is the number of consecutive failures after which a task
	// only runs every other tick, then every fourth, up to MaxSkip. Default: 3.
	MaxFailCount int
	// MaxSkip caps the number of ticks skipped by a failing task. Default: 12.
	MaxSkip int
}

func (c *Config) defaults() {
	if c.CheckInterval <= 0 {
		c.CheckInterval = 5 * time.Minute
	}
	if c.MaxFailCount <= 0 {
		c.MaxFailCount = 3
	}
	if c.MaxSkip <= 0 {
		c.MaxSkip = 12
	}
}

type taskState struct {
	fails   int
	skipFor int
}

// Scheduler runs tasks on a ticker.
type Scheduler struct {
	tasks  []Task
	config Config
	logger *slog.Logger

	mu    sync.Mutex
	state map[string]*taskState
}

// New creates a Scheduler.
func New(tasks []Task, cfg Config, logger *slog.Logger) *Scheduler {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	st := make(map[string]*taskState, len(tasks))
	for _, t := range tasks {
		st[t.Name] = &taskState{}
	}
	return &Scheduler{tasks: tasks, config: cfg, logger: logger, state: st}
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	// Run once immediately on start.
	s.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs every task that is not backing off, one after the other.
func (s *Scheduler) Tick(ctx context.Context) {
	for _, t := range s.tasks {
		if ctx.Err() != nil {
			return
		}
		if s.skip(t.Name) {
			s.logger.Debug("scheduler: task backing off", "task", t.Name)
			continue
		}
		start := time.Now()
		err := t.Run(ctx)
		s.record(t.Name, err)
		if err != nil {
			s.logger.Warn("scheduler: task failed", "task", t.Name, "error", err)
			continue
		}
		s.logger.Debug("scheduler: task done", "task", t.Name, "duration_ms", time.Since(start).Milliseconds())
	}
}

func (s *Scheduler) skip(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state[name]
	if st.skipFor > 0 {
		st.skipFor--
		return true
	}
	return false
}

func (s *Scheduler) record(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state[name]
	if err == nil {
		st.fails, st.skipFor = 0, 0
		return
	}
	st.fails++
	if over := st.fails - s.config.MaxFailCount; over >= 0 {
		st.skipFor = min(1<<min(over, 16), s.config.MaxSkip)
	}
}

// Failures returns the consecutive failure count of a task.
func (s *Scheduler) Failures(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.state[name]; ok {
		return st.fails
	}
	return 0
}
