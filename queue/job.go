package queue

import "context"

// Job is a consumer-facing handle bound to one leased job record. It is a
// disposable view: the engine owns all persistent state and the handle only
// requests transitions through it, so no client can bypass the protocol.
//
// A handle accepts exactly one terminal call (Complete, Error, or Defer)
// and returns ErrAlreadyResolved afterwards. Handles are meant for a single
// consumer goroutine and are not safe for concurrent use.
type Job struct {
	// ID is the queue-scoped identifier, unique for the lifetime of the job.
	// Its prefix embeds the lane the job was pushed onto.
	ID string

	// Payload is the opaque caller-serialized blob; the queue never
	// interprets its contents.
	Payload []byte

	// Lane is the pending list the job most recently belonged to.
	Lane Lane

	queue    *Queue
	resolved bool
	result   []byte
}

// Complete marks the job as successfully processed and removes its live keys.
func (j *Job) Complete(ctx context.Context) error {
	if j.resolved {
		return ErrAlreadyResolved
	}
	if err := j.queue.Complete(ctx, j.ID); err != nil {
		return err
	}
	j.resolved = true
	return nil
}

// Error marks a processing failure. Depending on the remaining retry budget
// the job is either requeued or removed (and dead-lettered when enabled).
func (j *Job) Error(ctx context.Context) error {
	if j.resolved {
		return ErrAlreadyResolved
	}
	if err := j.queue.Error(ctx, j.ID); err != nil {
		return err
	}
	j.resolved = true
	return nil
}

// Defer requeues the job for another consumer (or this one, later) without
// charging an attempt.
func (j *Job) Defer(ctx context.Context) error {
	if j.resolved {
		return ErrAlreadyResolved
	}
	if err := j.queue.Defer(ctx, j.ID); err != nil {
		return err
	}
	j.resolved = true
	return nil
}

// Attempts returns the live attempt count for the job, queried from the
// engine rather than cached on the handle.
func (j *Job) Attempts(ctx context.Context) (int, error) {
	return j.queue.Attempts(ctx, j.ID)
}

// Result returns the stored processing result, fetching it lazily on first
// read and caching it on the handle thereafter. It returns (nil, nil) when no
// result has been stored yet.
func (j *Job) Result(ctx context.Context) ([]byte, error) {
	if j.result != nil {
		return j.result, nil
	}
	data, err := j.queue.GetResult(ctx, j.ID)
	if err != nil {
		return nil, err
	}
	j.result = data
	return data, nil
}

// SetResult writes the processing result through to the engine and caches the
// written value locally. Results are write-once.
func (j *Job) SetResult(ctx context.Context, data []byte) error {
	if err := j.queue.PutResult(ctx, j.ID, data); err != nil {
		return err
	}
	j.result = data
	return nil
}
