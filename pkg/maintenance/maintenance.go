// Package maintenance keeps the catalog database healthy: it runs SQLite and
// full text index housekeeping on demand or on a cron schedule.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rubiojr/cardex/pkg/index"
	"github.com/rubiojr/cardex/pkg/log"
	"github.com/rubiojr/cardex/pkg/storage"
)

var logger = log.ForService("maintenance")

// Task is one named maintenance step.
type Task struct {
	Name string
	Run  func(context.Context) error
}

// Tasks returns the steps of a scheduled maintenance pass, cheapest first.
func Tasks(store *storage.Store, ix *index.Index) []Task {
	return []Task{
		{Name: "optimize", Run: store.Optimize},
		{Name: "fts-optimize", Run: ix.Optimize},
		{Name: "checkpoint", Run: store.WALCheckpoint},
	}
}

// RunTasks runs every task in order, carrying on after failures, and returns
// the joined errors.
func RunTasks(ctx context.Context, tasks []Task) error {
	var errs []error
	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return err
		}
		started := time.Now()
		if err := task.Run(ctx); err != nil {
			logger.Warnf("%s failed: %v", task.Name, err)
			errs = append(errs, fmt.Errorf("%s: %w", task.Name, err))
			continue
		}
		logger.Debugf("%s done in %s", task.Name, time.Since(started).Round(time.Millisecond))
	}
	return errors.Join(errs...)
}

// Scheduler runs the maintenance tasks on a cron schedule.
type Scheduler struct {
	schedule string
	tasks    []Task
	cron     *cron.Cron

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	runs    int
}

// NewScheduler creates a scheduler for the standard tasks. schedule is a
// five field cron spec or a descriptor such as "@hourly".
func NewScheduler(store *storage.Store, schedule string) *Scheduler {
	return newScheduler(schedule, Tasks(store, index.New(store.DB())))
}

func newScheduler(schedule string, tasks []Task) *Scheduler {
	return &Scheduler{
		schedule: schedule,
		tasks:    tasks,
		cron: cron.New(
			cron.WithLogger(cronLogger{}),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{})),
		),
	}
}

// Start validates the schedule and starts running tasks in the background
// until Stop is called or ctx is done. A scheduler is started at most once.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("maintenance scheduler is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	_, err := s.cron.AddFunc(s.schedule, func() {
		if err := RunTasks(runCtx, s.tasks); err != nil {
			logger.Errorf("maintenance pass failed: %v", err)
		}
		s.mu.Lock()
		s.runs++
		s.mu.Unlock()
	})
	if err != nil {
		cancel()
		return fmt.Errorf("invalid maintenance schedule %q: %w", s.schedule, err)
	}

	s.cancel = cancel
	s.running = true
	s.cron.Start()
	logger.Infof("maintenance scheduled %s", s.schedule)

	go func() {
		<-runCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop halts the schedule and waits for a pass in progress to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	<-s.cron.Stop().Done()
	logger.Debugf("maintenance scheduler stopped")
}

// Runs returns how many scheduled passes have completed.
func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

// cronLogger routes cron's own logging through the maintenance logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	logger.Debugf("cron: %s %v", msg, keysAndValues)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logger.Errorf("cron: %s: %v %v", msg, err, keysAndValues)
}
