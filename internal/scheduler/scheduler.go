package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Task is one named maintenance job with a cron schedule.
type Task struct {
	Name string
	Cron string
	Run  func(ctx context.Context) error
}

// Scheduler runs registered maintenance tasks on their cron schedules:
// history retention pruning, backup trimming, database vacuum. One minute
// tick resolution; a task still running when its next slot arrives is
// skipped for that slot.
type Scheduler struct {
	parser cron.Parser
	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex

	tasksMu sync.Mutex
	tasks   []*scheduledTask

	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

type scheduledTask struct {
	task    Task
	sched   cron.Schedule
	nextRun time.Time
}

// NewScheduler creates an empty scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		logger:   logger,
		inflight: make(map[string]struct{}),
	}
}

// Register adds a task. Returns an error for an unparseable cron expression.
func (s *Scheduler) Register(task Task) error {
	sched, err := s.parser.Parse(task.Cron)
	if err != nil {
		return fmt.Errorf("parse cron expression %q for task %q: %w", task.Cron, task.Name, err)
	}

	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()
	s.tasks = append(s.tasks, &scheduledTask{
		task:    task,
		sched:   sched,
		nextRun: sched.Next(time.Now().UTC()),
	})
	return nil
}

// Start launches the background scheduling loop with a 60s ticker.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("maintenance scheduler started")
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, time.Now().UTC())
		}
	}
}

// tick runs every task whose next slot has arrived.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	s.tasksMu.Lock()
	due := make([]*scheduledTask, 0, len(s.tasks))
	for _, st := range s.tasks {
		if !st.nextRun.After(now) {
			st.nextRun = st.sched.Next(now)
			due = append(due, st)
		}
	}
	s.tasksMu.Unlock()

	for _, st := range due {
		if !s.tryAcquire(st.task.Name) {
			continue // previous run still in flight (dedup)
		}
		go func(st *scheduledTask) {
			defer s.release(st.task.Name)
			s.logger.Info("running maintenance task", slog.String("task", st.task.Name))
			if err := st.task.Run(ctx); err != nil {
				s.logger.Error("maintenance task failed",
					slog.String("task", st.task.Name),
					slog.String("error", err.Error()),
				)
			}
		}(st)
	}
}

func (s *Scheduler) tryAcquire(name string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[name]; ok {
		return false
	}
	s.inflight[name] = struct{}{}
	return true
}

func (s *Scheduler) release(name string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, name)
}

// NextRun computes the next execution time for a cron expression.
func (s *Scheduler) NextRun(cronExpr string, from time.Time) (time.Time, error) {
	sched, err := s.parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return sched.Next(from), nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("maintenance scheduler stopped")
	return nil
}
