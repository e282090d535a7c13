package queue

import (
	"log/slog"
	"time"
)

// WorkerOption is a functional option for configuring a Worker
type WorkerOption func(*workerOptions)

type workerOptions struct {
	pollInterval   time.Duration
	maxConcurrent  int
	ignorePriority bool
	logger         *slog.Logger
}

// WithPollInterval sets how often the worker checks for new jobs
func WithPollInterval(interval time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if interval > 0 {
			o.pollInterval = interval
		}
	}
}

// WithMaxConcurrent sets the maximum number of jobs processed concurrently
func WithMaxConcurrent(n int) WorkerOption {
	return func(o *workerOptions) {
		if n > 0 {
			o.maxConcurrent = n
		}
	}
}

// WithWorkerIgnorePriority makes the worker dequeue from a random non-empty
// lane instead of preferring the high-priority lane
func WithWorkerIgnorePriority() WorkerOption {
	return func(o *workerOptions) {
		o.ignorePriority = true
	}
}

// WithLogger sets the structured logger used by the worker
func WithLogger(logger *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithWorkerConfig applies PollInterval and MaxConcurrent from an
// environment-derived Config.
func WithWorkerConfig(cfg Config) WorkerOption {
	return func(o *workerOptions) {
		if cfg.PollInterval > 0 {
			o.pollInterval = cfg.PollInterval
		}
		if cfg.MaxConcurrent > 0 {
			o.maxConcurrent = cfg.MaxConcurrent
		}
	}
}
