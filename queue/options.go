package queue

import "time"

// Default configuration values applied when no option overrides them.
const (
	DefaultMaxAttempts  = 5
	DefaultLeaseTimeout = time.Hour
)

// Retention windows for job-scoped auxiliary records.
const (
	ackRetention    = time.Hour
	resultRetention = 24 * time.Hour
)

// Option is a functional option for configuring a Queue
type Option func(*queueOptions)

type queueOptions struct {
	maxAttempts  int
	leaseTimeout time.Duration
	results      bool
	ack          bool
	deadLetter   bool
	priority     bool
}

// WithMaxAttempts sets the retry ceiling for jobs in this queue
func WithMaxAttempts(n int) Option {
	return func(o *queueOptions) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithLeaseTimeout sets the duration after which an unacknowledged lease is
// considered abandoned and becomes eligible for reclamation
func WithLeaseTimeout(d time.Duration) Option {
	return func(o *queueOptions) {
		if d > 0 {
			o.leaseTimeout = d
		}
	}
}

// WithResults enables write-once result storage for jobs in this queue
func WithResults() Option {
	return func(o *queueOptions) {
		o.results = true
	}
}

// WithAck enables acknowledgement records written on job completion
func WithAck() Option {
	return func(o *queueOptions) {
		o.ack = true
	}
}

// WithDeadLetter enables the dead-letter store for jobs that exhaust their
// retry budget
func WithDeadLetter() Option {
	return func(o *queueOptions) {
		o.deadLetter = true
	}
}

// WithPriority enables the secondary high-priority lane
func WithPriority() Option {
	return func(o *queueOptions) {
		o.priority = true
	}
}

// WithConfig applies MaxAttempts and LeaseTimeout from an environment-derived
// Config. Feature flags remain code-level decisions.
func WithConfig(cfg Config) Option {
	return func(o *queueOptions) {
		if cfg.MaxAttempts > 0 {
			o.maxAttempts = cfg.MaxAttempts
		}
		if cfg.LeaseTimeout > 0 {
			o.leaseTimeout = cfg.LeaseTimeout
		}
	}
}

// EnqueueOption is a functional option for the Enqueue method
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	highPriority bool
}

// WithHighPriority pushes the job onto the high-priority lane. Requires the
// queue to be built with WithPriority.
func WithHighPriority() EnqueueOption {
	return func(o *enqueueOptions) {
		o.highPriority = true
	}
}

// DequeueOption is a functional option for the Dequeue method
type DequeueOption func(*dequeueOptions)

type dequeueOptions struct {
	ignorePriority bool
}

// WithIgnorePriority makes Dequeue choose uniformly at random between
// non-empty lanes instead of preferring the high-priority lane
func WithIgnorePriority() DequeueOption {
	return func(o *dequeueOptions) {
		o.ignorePriority = true
	}
}
