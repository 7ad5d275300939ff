package crawlers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/RecoveryAshes/poharvest/internal/models"
)

// DefaultWorkers is the pool size when none is configured.
const DefaultWorkers = 8

// TaskHandler produces the record for one task. It must not block forever:
// a hanging handler holds its worker until its own timeouts fire.
type TaskHandler func(ctx context.Context, task models.ExtractionTask) models.Record

// ResultFunc observes each finished task on the collecting goroutine.
type ResultFunc func(task models.ExtractionTask, rec models.Record, elapsed time.Duration)

// WorkerPool runs tasks with bounded concurrency.
type WorkerPool struct {
	workers  int
	limiter  *rate.Limiter // nil: unlimited dispatch
	onResult ResultFunc
	logger   zerolog.Logger
}

// NewWorkerPool creates a pool. dispatchRate is task starts per second, 0 for unlimited.
func NewWorkerPool(workers int, dispatchRate float64, logger zerolog.Logger) *WorkerPool {
	if workers < 1 {
		workers = DefaultWorkers
	}
	wp := &WorkerPool{workers: workers, logger: logger}
	if dispatchRate > 0 {
		wp.limiter = rate.NewLimiter(rate.Limit(dispatchRate), 1)
	}
	return wp
}

// OnResult sets the per-result callback. Not safe to call during Run.
func (wp *WorkerPool) OnResult(fn ResultFunc) {
	wp.onResult = fn
}

// Workers returns the pool size.
func (wp *WorkerPool) Workers() int {
	return wp.workers
}

type taskResult struct {
	task    models.ExtractionTask
	record  models.Record
	elapsed time.Duration
}

// Run executes every task and returns one record per task in completion order.
// It returns only after all tasks finished; a panicking handler yields a failure record.
func (wp *WorkerPool) Run(ctx context.Context, tasks []models.ExtractionTask, handler TaskHandler) []models.Record {
	if len(tasks) == 0 {
		return []models.Record{}
	}

	workers := wp.workers
	if workers > len(tasks) {
		workers = len(tasks)
	}

	taskCh := make(chan models.ExtractionTask, len(tasks))
	for _, t := range tasks {
		taskCh <- t
	}
	close(taskCh)

	resultCh := make(chan taskResult, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for task := range taskCh {
				resultCh <- wp.runTask(ctx, workerID, task, handler)
			}
		}(i)
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	records := make([]models.Record, 0, len(tasks))
	for res := range resultCh {
		records = append(records, res.record)
		if wp.onResult != nil {
			wp.onResult(res.task, res.record, res.elapsed)
		}
	}
	return records
}

func (wp *WorkerPool) runTask(ctx context.Context, workerID int, task models.ExtractionTask, handler TaskHandler) (res taskResult) {
	start := time.Now()
	res.task = task

	defer func() {
		if r := recover(); r != nil {
			wp.logger.Error().Int("worker", workerID).Msgf("%s: panic recovered: %v", task, r)
			res.record = models.NewFailureRecord(task.ItemID, &models.ItemExtractionError{ItemID: task.ItemID, Attempts: 1, Cause: fmt.Errorf("panic: %v", r)})
			res.record.OriginPage = task.OriginPage
		}
		res.elapsed = time.Since(start)
	}()

	if wp.limiter != nil {
		if err := wp.limiter.Wait(ctx); err != nil {
			res.record = models.NewFailureRecord(task.ItemID, &models.ItemExtractionError{ItemID: task.ItemID, Cause: err})
			res.record.OriginPage = task.OriginPage
			return res
		}
	}

	wp.logger.Debug().Int("worker", workerID).Msgf("%s: started", task)
	res.record = handler(ctx, task)
	return res
}
