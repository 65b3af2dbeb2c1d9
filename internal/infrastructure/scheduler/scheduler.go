package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// Task is a named job run on a cron schedule
type Task struct {
	Name     string
	Schedule string
	Handler  func(ctx context.Context) error
}

// Scheduler runs registered tasks in UTC. A task never overlaps with its own
// previous run.
type Scheduler struct {
	scheduler *gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
	logger    zerolog.Logger
}

// New creates a scheduler whose task contexts derive from ctx
func New(ctx context.Context, logger zerolog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	taskCtx, cancel := context.WithCancel(ctx)
	return &Scheduler{
		scheduler: s,
		ctx:       taskCtx,
		cancel:    cancel,
		logger:    logger,
	}
}

// Register adds task to the scheduler
func (s *Scheduler) Register(task Task) error {
	job, err := s.scheduler.Cron(task.Schedule).Do(func() {
		start := time.Now()
		s.logger.Info().Str("task", task.Name).Msg("Running scheduled task")

		if err := task.Handler(s.ctx); err != nil {
			s.logger.Error().Err(err).Str("task", task.Name).Msg("Scheduled task failed")
			return
		}
		s.logger.Info().
			Str("task", task.Name).
			Dur("duration", time.Since(start)).
			Msg("Scheduled task completed")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule task %s: %w", task.Name, err)
	}
	job.Tag(task.Name)

	s.logger.Info().Str("task", task.Name).Str("schedule", task.Schedule).Msg("Registered task")
	return nil
}

// Len returns the number of registered tasks
func (s *Scheduler) Len() int {
	return len(s.scheduler.Jobs())
}

// Run starts the scheduler and blocks until ctx is done
func (s *Scheduler) Run(ctx context.Context) {
	s.scheduler.StartAsync()
	<-ctx.Done()
	s.Stop()
}

// Stop halts the scheduler and cancels running tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	s.cancel()
}
