// Package scheduler runs the periodic maintenance tasks: expired job purges
// and artifact session cleanup.
package scheduler

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

type Scheduler struct {
	scheduler *gocron.Scheduler
	logger    *slog.Logger
	jobs      map[string]*gocron.Job
	mu        sync.RWMutex
}

// NewScheduler creates a new scheduler instance
func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		logger:    logger,
		jobs:      make(map[string]*gocron.Job),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// ScheduleTask registers a named periodic task, replacing any previous task
// registered under the same name.
func (s *Scheduler) ScheduleTask(name string, interval time.Duration, task func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if interval <= 0 {
		return fmt.Errorf("interval for task %s must be positive", name)
	}

	if job, exists := s.jobs[name]; exists {
		s.scheduler.RemoveByReference(job)
		delete(s.jobs, name)
	}

	job, err := s.scheduler.Every(interval).Do(func() {
		s.logger.Debug("running scheduled task", "name", name)
		task()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule task %s: %w", name, err)
	}

	s.jobs[name] = job
	s.logger.Info("scheduled task", "name", name, "interval", interval)
	return nil
}
