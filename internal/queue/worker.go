package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/speaker-diarization/internal/types"
)

// ErrStopped is returned when jobs are submitted to a stopped pool
var ErrStopped = errors.New("worker pool stopped")

// ProcessFunc runs one job and returns its result
type ProcessFunc func(ctx context.Context, job *Job) (*types.Result, error)

// WorkerPool serializes pipeline calls over a fixed number of workers
type WorkerPool struct {
	jobQueue    chan *Job
	workerCount int
	process     ProcessFunc
	log         zerolog.Logger

	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(workerCount, queueSize int, process ProcessFunc, log zerolog.Logger) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &WorkerPool{
		jobQueue:    make(chan *Job, queueSize),
		workerCount: workerCount,
		process:     process,
		log:         log,
		stopChan:    make(chan struct{}),
	}
}

// Start initializes all workers
func (wp *WorkerPool) Start() {
	wp.log.Info().Int("workers", wp.workerCount).Msg("Starting worker pool")
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop stops accepting jobs and waits for running ones to finish.
// Queued jobs that were not started fail with ErrStopped.
func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		close(wp.stopChan)
		wp.wg.Wait()
		for {
			select {
			case job := <-wp.jobQueue:
				wp.finish(job, nil, ErrStopped)
			default:
				wp.log.Info().Msg("Worker pool stopped")
				return
			}
		}
	})
}

// Do enqueues job and blocks until it completes or ctx is done
func (wp *WorkerPool) Do(ctx context.Context, job *Job) (*types.Result, error) {
	if job.done == nil {
		job.done = make(chan struct{})
	}
	job.ctx = ctx
	job.Status = types.StatusQueued
	job.CreatedAt = time.Now()

	select {
	case <-wp.stopChan:
		return nil, ErrStopped
	default:
	}

	select {
	case wp.jobQueue <- job:
		wp.log.Debug().Str("job_id", job.ID).Msg("Job enqueued")
	case <-wp.stopChan:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case <-job.done:
		return job.Result, job.Error
	case <-wp.stopChan:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// worker processes jobs from the queue
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	log := wp.log.With().Int("worker", id).Logger()
	log.Debug().Msg("Worker started")

	for {
		select {
		case <-wp.stopChan:
			return
		case job := <-wp.jobQueue:
			wp.run(log, job)
		}
	}
}

func (wp *WorkerPool) run(log zerolog.Logger, job *Job) {
	// The caller has already given up; its input may be gone.
	if err := job.context().Err(); err != nil {
		log.Debug().Str("job_id", job.ID).Err(err).Msg("Skipping abandoned job")
		wp.finish(job, nil, err)
		return
	}

	var (
		result *types.Result
		err    error
	)

	// Panic recovery
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("job_id", job.ID).
					Str("stack", string(debug.Stack())).
					Msgf("PANIC processing job: %v", r)
				err = fmt.Errorf("worker panic: %v", r)
			}
		}()

		job.Status = types.StatusProcessing
		start := time.Now()
		result, err = wp.process(job.context(), job)
		log.Debug().Str("job_id", job.ID).Dur("took", time.Since(start)).Msg("Job processed")
	}()

	wp.finish(job, result, err)
}

func (wp *WorkerPool) finish(job *Job, result *types.Result, err error) {
	job.Result = result
	job.Error = err
	if err != nil {
		job.Status = types.StatusFailed
	} else {
		job.Status = types.StatusCompleted
	}
	close(job.done)
}
