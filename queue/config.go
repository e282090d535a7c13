package queue

import "time"

// Config holds the configuration for a queue and its workers
type Config struct {
	MaxAttempts   int           `env:"QUEUE_MAX_ATTEMPTS" envDefault:"5"`
	LeaseTimeout  time.Duration `env:"QUEUE_LEASE_TIMEOUT" envDefault:"1h"`
	PollInterval  time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"5s"`
	MaxConcurrent int           `env:"QUEUE_MAX_CONCURRENT_JOBS" envDefault:"10"`
}
