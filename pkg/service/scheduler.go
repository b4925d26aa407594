package service

import (
	"context"
	"time"

	"github.com/bizflow/autopilot/pkg/models"
	"github.com/bizflow/autopilot/pkg/storage"
	"github.com/pkg/errors"
)

// DefaultPollInterval is how often the scheduler queries for due tasks.
const DefaultPollInterval = time.Minute

// Scheduler drives the engine: a recurring poll queries due tasks and runs
// the generator for each through a bounded worker pool. Generation of a
// task always finishes (success, fallback, or failed) within the poll that
// picked it up; the approval gate only ever sees complete pending actions.
type Scheduler struct {
	store     storage.Store
	generator *Generator
	pool      *WorkerPool
	interval  time.Duration
	logger    Logger
}

func NewScheduler(mainCtx context.Context, store storage.Store, generator *Generator, logger Logger, interval time.Duration, workers int) *Scheduler {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	s := &Scheduler{
		store:     store,
		generator: generator,
		interval:  interval,
		logger:    logger,
	}
	s.pool = NewWorkerPool(mainCtx, s.process, logger)
	s.pool.Start(workers)
	return s
}

// Run polls until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.Infof("Scheduler started (interval %s)", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Infof("Scheduler stopping: %v", ctx.Err())
			s.pool.Stop()
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Errorf("Scheduler pass failed: %v", err)
			}
		}
	}
}

// RunOnce performs a single poll-and-generate pass.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	tasks, err := s.store.ListDueFollowUpTasks(time.Now())
	if err != nil {
		return errors.Wrap(err, "failed to list due tasks")
	}
	if len(tasks) == 0 {
		return nil
	}
	s.logger.Infof("Processing %d due follow-up task(s)", len(tasks))
	s.pool.Process(ctx, tasks)
	return nil
}

// process handles one due task. Skip sentinels are expected between
// overlapping polls and settings changes; only generation failures are
// errors.
func (s *Scheduler) process(ctx context.Context, task models.FollowUpTask) {
	_, err := s.generator.GenerateAction(ctx, task)
	switch {
	case err == nil:
	case errors.Is(err, ErrAutomationDisabled),
		errors.Is(err, ErrTaskNotDue),
		errors.Is(err, ErrDuplicateAction),
		errors.Is(err, storage.ErrInvalidState):
		s.logger.Infof("Skipped task %s: %v", task.ID, err)
	default:
		s.logger.Errorf("Task %s: %v", task.ID, err)
	}
}
