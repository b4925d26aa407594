package service

import (
	"context"
	"sync"

	"github.com/bizflow/autopilot/pkg/models"
)

// DefaultWorkers bounds concurrent generation to respect the completion
// service's rate limits.
const DefaultWorkers = 4

// TaskHandler processes one due follow-up task.
type TaskHandler func(ctx context.Context, task models.FollowUpTask)

type poolJob struct {
	ctx   context.Context
	task  models.FollowUpTask
	batch *sync.WaitGroup
}

// WorkerPool runs task handlers with bounded concurrency. Distinct tasks
// are independent, so no ordering is guaranteed across them.
type WorkerPool struct {
	handler TaskHandler
	jobChan chan poolJob
	wg      sync.WaitGroup
	ctx     context.Context
	logger  Logger
}

func NewWorkerPool(mainCtx context.Context, handler TaskHandler, logger Logger) *WorkerPool {
	return &WorkerPool{
		handler: handler,
		ctx:     mainCtx,
		logger:  logger,
	}
}

// Start begins the worker pool with the specified number of workers.
func (wp *WorkerPool) Start(workers int) {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	wp.jobChan = make(chan poolJob, workers)
	for i := 0; i < workers; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
}

// Stop gracefully stops the worker pool, letting in-flight handlers finish.
func (wp *WorkerPool) Stop() {
	close(wp.jobChan)
	wp.wg.Wait()
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()
	for job := range wp.jobChan {
		if wp.ctx.Err() != nil || job.ctx.Err() != nil {
			wp.logger.Infof("Skipping task %s: context cancelled", job.task.ID)
			job.batch.Done()
			continue
		}
		wp.handler(job.ctx, job.task)
		job.batch.Done()
	}
}

// Process submits a batch of tasks and blocks until every handler in the
// batch has returned.
func (wp *WorkerPool) Process(ctx context.Context, tasks []models.FollowUpTask) {
	var batch sync.WaitGroup
	batch.Add(len(tasks))
	for _, task := range tasks {
		wp.jobChan <- poolJob{ctx: ctx, task: task, batch: &batch}
	}
	batch.Wait()
}
