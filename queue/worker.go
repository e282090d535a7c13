package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/corequeue/logger"
)

// Handler processes one claimed job. Returning nil completes the job;
// returning an error (or panicking) marks it failed, charging an attempt and
// eventually dead-lettering it.
type Handler func(ctx context.Context, job *Job) error

// Worker polls a queue and dispatches claimed jobs to a Handler with bounded
// concurrency.
type Worker struct {
	queue    *Queue
	handler  Handler
	workerID uuid.UUID
	sem      chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	stopMu   sync.Mutex // Protects stopping state and WaitGroup operations

	pollInterval   time.Duration
	ignorePriority bool
	logger         *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	stopping atomic.Bool
}

// NewWorker creates a worker bound to the given queue and handler.
func NewWorker(q *Queue, handler Handler, opts ...WorkerOption) (*Worker, error) {
	if q == nil {
		return nil, ErrQueueNil
	}
	if handler == nil {
		return nil, ErrNoHandler
	}

	options := &workerOptions{
		pollInterval:  5 * time.Second,
		maxConcurrent: 1,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Worker{
		queue:          q,
		handler:        handler,
		workerID:       uuid.New(),
		sem:            make(chan struct{}, options.maxConcurrent),
		pollInterval:   options.pollInterval,
		ignorePriority: options.ignorePriority,
		logger:         options.logger,
	}, nil
}

// Start begins claiming and processing jobs in the background.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return fmt.Errorf("worker already started")
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	w.stopping.Store(false)

	go w.run()

	w.logger.Info("worker started",
		logger.WorkerID(w.workerID.String()),
		logger.QueueName(w.queue.Name()),
		slog.Int("max_concurrent", cap(w.sem)))

	return nil
}

// Stop gracefully shuts down the worker, waiting for in-flight jobs.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return fmt.Errorf("worker not started")
	}

	w.stopMu.Lock()
	w.stopping.Store(true)
	w.stopMu.Unlock()

	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()

	w.logger.Info("worker stopped",
		logger.WorkerID(w.workerID.String()),
		logger.QueueName(w.queue.Name()))

	return nil
}

// Run starts the worker and returns a function suitable for errgroup.
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return w.Stop()
	}
}

// run is the main polling loop.
func (w *Worker) run() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			select {
			case w.sem <- struct{}{}:
				// Use stopMu to ensure we don't add to WaitGroup after Stop() starts
				w.stopMu.Lock()
				if w.stopping.Load() {
					w.stopMu.Unlock()
					<-w.sem
					return
				}
				w.wg.Add(1)
				w.stopMu.Unlock()

				go func() {
					defer w.wg.Done()
					defer func() { <-w.sem }()

					if err := w.claimAndProcess(); err != nil {
						w.logger.Error("failed to process job",
							logger.WorkerID(w.workerID.String()),
							logger.Error(err))
					}
				}()
			default:
				w.logger.Debug("all worker slots busy, skipping tick",
					logger.WorkerID(w.workerID.String()))
			}
		}
	}
}

// claimAndProcess claims the next job and runs the handler on it.
func (w *Worker) claimAndProcess() error {
	var opts []DequeueOption
	if w.ignorePriority {
		opts = append(opts, WithIgnorePriority())
	}

	job, err := w.queue.Dequeue(w.ctx, opts...)
	if err != nil {
		// A drained queue is normal; a lock conflict means the job was
		// restored to its lane and will be picked up on a later tick.
		if errors.Is(err, ErrEmptyQueue) || errors.Is(err, ErrLockConflict) {
			return nil
		}
		return fmt.Errorf("failed to claim job: %w", err)
	}

	w.logger.Debug("claimed job",
		logger.WorkerID(w.workerID.String()),
		logger.JobID(job.ID),
		logger.Lane(string(job.Lane)))

	return w.process(job)
}

// process executes the handler with panic recovery and resolves the job.
func (w *Worker) process(job *Job) (retErr error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("panic in handler: %v", r)
			w.logger.Error("handler panicked",
				logger.WorkerID(w.workerID.String()),
				logger.JobID(job.ID),
				slog.Any("panic", r))
			_ = w.resolveFailure(job, retErr, time.Since(start))
		}
	}()

	// The handler context is bounded by the lease timeout but detached from
	// the worker lifecycle, so graceful shutdown lets in-flight jobs finish.
	ctx, cancel := context.WithTimeout(context.Background(), w.queue.leaseTimeout)
	defer cancel()

	err := w.handler(ctx, job)
	duration := time.Since(start)

	if err != nil {
		return w.resolveFailure(job, err, duration)
	}

	if err := job.Complete(w.ctx); err != nil {
		return fmt.Errorf("failed to complete job %s: %w", job.ID, err)
	}

	w.logger.Info("job completed",
		logger.WorkerID(w.workerID.String()),
		logger.JobID(job.ID),
		logger.Duration(duration))

	return nil
}

// resolveFailure marks the job failed; the engine decides between retry and
// dead-letter based on the remaining attempt budget.
func (w *Worker) resolveFailure(job *Job, execErr error, duration time.Duration) error {
	w.logger.Error("job failed",
		logger.WorkerID(w.workerID.String()),
		logger.JobID(job.ID),
		logger.Duration(duration),
		logger.Error(execErr))

	if err := job.Error(w.ctx); err != nil {
		return fmt.Errorf("failed to mark job %s as failed: %w", job.ID, err)
	}
	return nil
}

// WorkerID returns the worker's unique identifier.
func (w *Worker) WorkerID() string {
	return w.workerID.String()
}
