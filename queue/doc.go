// Package queue implements a lease-based job queue protocol on top of a
// generic atomic key-value/list storage backend. It provides at-least-once
// delivery of opaque payloads to competing consumers, with configurable retry
// limits, dead-lettering, optional result storage, optional delivery
// acknowledgement, and optional priority scheduling.
//
// The package is organised around three main components:
//
//   - Storage: the minimal contract a backing store must satisfy (atomic
//     conditional-create, atomic increment, hash and list primitives)
//   - Queue: the engine implementing enqueue, lease acquisition, retry,
//     dead-lettering, stale-lease reclamation, and result storage
//   - Worker: a polling consumer that claims jobs and dispatches them to a
//     user supplied Handler
//
// Components interact only through the Storage interface, keeping the protocol
// decoupled from persistence. The redis and pg packages in this module provide
// ready-made Storage implementations; MemoryStorage backs tests and local
// development.
//
// # Job lifecycle
//
// A job moves between five states, all recorded in the backing store:
//
//	pending (lane list) → leased (lease table) → removed     via Job.Complete
//	pending → leased → pending                               via Job.Error (retry)
//	pending → leased → dead (dead-letter store)              via Job.Error (budget exhausted)
//	pending → leased → pending                               via Job.Defer (attempt-neutral)
//	leased  → pending                                        via reclaim (lease expired)
//
// The store is the sole source of truth and the sole serialization point.
// Lease acquisition uses a single atomic conditional-create, so two consumers
// can never both claim the same job. Stale leases left behind by crashed
// consumers are reclaimed at the top of every Dequeue and Size call.
//
// # Usage
//
// Producer side:
//
//	q, err := queue.New(ctx, storage, "emails",
//	    queue.WithMaxAttempts(3),
//	    queue.WithDeadLetter(),
//	)
//	if err != nil {
//	    return err
//	}
//	job, err := q.Enqueue(ctx, payload)
//
// Consumer side, manual loop:
//
//	job, err := q.Dequeue(ctx)
//	if errors.Is(err, queue.ErrEmptyQueue) {
//	    return nil // drained
//	}
//	if err := process(job.Payload); err != nil {
//	    return job.Error(ctx) // requeue or dead-letter
//	}
//	return job.Complete(ctx)
//
// Consumer side, managed worker:
//
//	w, _ := queue.NewWorker(q, func(ctx context.Context, job *queue.Job) error {
//	    return process(job.Payload)
//	})
//	go w.Start(ctx)
//
// # Error Handling
//
// Package-level sentinel errors (e.g. ErrLockConflict, ErrDuplicateResult,
// ErrEmptyQueue) signal violations of protocol invariants and can be checked
// with errors.Is. Backend connectivity failures are never retried here; they
// propagate to the caller, who owns retry/backoff policy for the storage layer.
package queue
