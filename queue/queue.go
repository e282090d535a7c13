package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Queue is the engine orchestrating the job lifecycle for one named queue.
// It owns every mutation of lease and attempt state; Job handles only request
// transitions through it. A Queue holds no internal threading; it is a
// protocol executed by however many callers invoke it, and the backing store
// is the sole serialization point, so a single Queue value is safe for
// concurrent use.
type Queue struct {
	storage Storage
	name    string

	maxAttempts  int
	leaseTimeout time.Duration

	results    bool
	ack        bool
	deadLetter bool
	priority   bool

	// Derived auxiliary key names, fixed at construction.
	lockedKey   string
	attemptsKey string
	highKey     string
	deadKey     string
}

// DeadLetter is one entry in the dead-letter store: a job that exhausted its
// retry budget, preserved for manual inspection or replay.
type DeadLetter struct {
	ID       string    `json:"id"`
	Payload  []byte    `json:"payload"`
	Attempts int       `json:"attempts"`
	FailedAt time.Time `json:"failed_at"`
}

// New creates a queue engine bound to the given storage backend and registers
// the queue name idempotently in the backend-owned registry.
func New(ctx context.Context, storage Storage, name string, opts ...Option) (*Queue, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}
	if name == "" || strings.Contains(name, ":") {
		return nil, ErrInvalidQueueName
	}

	options := &queueOptions{
		maxAttempts:  DefaultMaxAttempts,
		leaseTimeout: DefaultLeaseTimeout,
	}
	for _, opt := range opts {
		opt(options)
	}

	q := &Queue{
		storage:      storage,
		name:         name,
		maxAttempts:  options.maxAttempts,
		leaseTimeout: options.leaseTimeout,
		results:      options.results,
		ack:          options.ack,
		deadLetter:   options.deadLetter,
		priority:     options.priority,
		lockedKey:    name + suffixLocked,
		attemptsKey:  name + suffixAttempts,
		highKey:      name + suffixHigh,
		deadKey:      name + suffixDead,
	}

	// First construction of a name wins; later constructions are no-ops, so
	// the registry keeps the original creation timestamp.
	if _, err := storage.HSetNX(ctx, registryKey, name, timestampBytes(time.Now())); err != nil {
		return nil, fmt.Errorf("failed to register queue %q: %w", name, err)
	}

	return q, nil
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

// Enqueue stores the payload under a fresh id and pushes the id onto the head
// of the chosen pending lane. The returned handle carries no lease and an
// attempt count of zero.
func (q *Queue) Enqueue(ctx context.Context, payload []byte, opts ...EnqueueOption) (*Job, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}

	options := &enqueueOptions{}
	for _, opt := range opts {
		opt(options)
	}

	lane := LaneNormal
	if options.highPriority {
		if !q.priority {
			return nil, ErrPriorityNotEnabled
		}
		lane = LaneHigh
	}

	id := q.newJobID(lane)
	if err := q.storage.Set(ctx, id, payload, 0); err != nil {
		return nil, fmt.Errorf("failed to store payload for job %s: %w", id, err)
	}
	if err := q.storage.LPush(ctx, q.laneKey(lane), id); err != nil {
		return nil, fmt.Errorf("failed to push job %s onto lane: %w", id, err)
	}

	return &Job{ID: id, Payload: payload, Lane: lane, queue: q}, nil
}

// Dequeue reclaims stale leases, pops the oldest id from the chosen lane, and
// acquires an exclusive lease on it. It returns ErrEmptyQueue when no job is
// available and ErrLockConflict when the popped id turned out to be leased
// already (the id is pushed back onto its lane first, so no job is lost).
func (q *Queue) Dequeue(ctx context.Context, opts ...DequeueOption) (*Job, error) {
	options := &dequeueOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if err := q.reclaim(ctx); err != nil {
		return nil, err
	}

	for {
		lane, err := q.pickLane(ctx, options.ignorePriority)
		if err != nil {
			return nil, err
		}

		id, err := q.storage.RPop(ctx, q.laneKey(lane))
		if err != nil {
			return nil, fmt.Errorf("failed to pop from lane %s: %w", lane, err)
		}
		if id == "" {
			// Raced another consumer for the last element; re-check lanes.
			continue
		}

		// A single atomic conditional-create closes the window where two
		// consumers both observe "not leased" and both proceed.
		acquired, err := q.storage.HSetNX(ctx, q.lockedKey, id, timestampBytes(time.Now()))
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lease for job %s: %w", id, err)
		}
		if !acquired {
			if err := q.storage.RPush(ctx, q.laneKey(lane), id); err != nil {
				return nil, fmt.Errorf("failed to restore job %s after lease conflict: %w", id, err)
			}
			return nil, fmt.Errorf("%w: job %s", ErrLockConflict, id)
		}

		payload, err := q.storage.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load payload for job %s: %w", id, err)
		}
		if payload == nil {
			// Stale lane pointer: the payload was removed while the id was
			// still queued (crash-recovery duplicates end up here). Drop the
			// pointer and its leftovers, then try the next candidate.
			if err := q.storage.HDelete(ctx, q.lockedKey, id); err != nil {
				return nil, fmt.Errorf("failed to drop stale lease for job %s: %w", id, err)
			}
			if err := q.storage.HDelete(ctx, q.attemptsKey, id); err != nil {
				return nil, fmt.Errorf("failed to drop stale attempts for job %s: %w", id, err)
			}
			continue
		}

		// The first lease grant charges attempt one; every later increment is
		// owned by the retry path in Error, so redelivery after a retry or a
		// reclaim never double-counts.
		if _, err := q.storage.HSetNX(ctx, q.attemptsKey, id, []byte("1")); err != nil {
			return nil, fmt.Errorf("failed to initialize attempts for job %s: %w", id, err)
		}

		return &Job{ID: id, Payload: payload, Lane: q.laneOf(id), queue: q}, nil
	}
}

// Complete removes the job's payload, lease entry, and attempt counter. With
// acknowledgements enabled it first writes a completion timestamp retained
// for one hour.
func (q *Queue) Complete(ctx context.Context, jobID string) error {
	if q.ack {
		if err := q.storage.Set(ctx, ackKey(jobID), timestampBytes(time.Now()), ackRetention); err != nil {
			return fmt.Errorf("failed to write ack for job %s: %w", jobID, err)
		}
	}
	return q.removeJob(ctx, jobID)
}

// Error handles a processing failure. While the attempt count is below the
// retry ceiling the job is re-enqueued onto its originating lane with the
// count incremented; otherwise its live keys are removed, after recording a
// dead-letter entry when dead-lettering is enabled.
func (q *Queue) Error(ctx context.Context, jobID string) error {
	attempts, err := q.Attempts(ctx, jobID)
	if err != nil {
		return err
	}

	if attempts < q.maxAttempts {
		if _, err := q.storage.HIncrBy(ctx, q.attemptsKey, jobID, 1); err != nil {
			return fmt.Errorf("failed to increment attempts for job %s: %w", jobID, err)
		}
		return q.requeue(ctx, jobID)
	}

	if q.deadLetter {
		payload, err := q.storage.Get(ctx, jobID)
		if err != nil {
			return fmt.Errorf("failed to load payload for dead job %s: %w", jobID, err)
		}
		entry, err := json.Marshal(DeadLetter{
			ID:       jobID,
			Payload:  payload,
			Attempts: attempts,
			FailedAt: time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("failed to encode dead-letter entry for job %s: %w", jobID, err)
		}
		if err := q.storage.HSet(ctx, q.deadKey, jobID, entry); err != nil {
			return fmt.Errorf("failed to dead-letter job %s: %w", jobID, err)
		}
	}

	return q.removeJob(ctx, jobID)
}

// Defer clears the lease and re-enqueues the job onto its originating lane
// without touching the attempt counter. This is the only requeue path that is
// attempt-count-neutral.
func (q *Queue) Defer(ctx context.Context, jobID string) error {
	return q.requeue(ctx, jobID)
}

// Size reclaims stale leases and returns the number of pending jobs across
// all lanes.
func (q *Queue) Size(ctx context.Context) (int64, error) {
	if err := q.reclaim(ctx); err != nil {
		return 0, err
	}

	size, err := q.storage.LLen(ctx, q.name)
	if err != nil {
		return 0, fmt.Errorf("failed to measure lane %s: %w", LaneNormal, err)
	}
	if q.priority {
		high, err := q.storage.LLen(ctx, q.highKey)
		if err != nil {
			return 0, fmt.Errorf("failed to measure lane %s: %w", LaneHigh, err)
		}
		size += high
	}
	return size, nil
}

// Reset clears the attempt counters, the lease table, both pending lanes, and
// every payload referenced by a lane or by the lease table.
func (q *Queue) Reset(ctx context.Context) error {
	var payloadKeys []string
	for _, laneKey := range []string{q.name, q.highKey} {
		ids, err := q.storage.LRange(ctx, laneKey, 0, -1)
		if err != nil {
			return fmt.Errorf("failed to list lane %s: %w", laneKey, err)
		}
		payloadKeys = append(payloadKeys, ids...)
	}

	// Payloads of currently leased jobs are not referenced by any lane;
	// collect them from the lease table so the wipe leaves no orphans.
	leases, err := q.storage.HGetAll(ctx, q.lockedKey)
	if err != nil {
		return fmt.Errorf("failed to read lease table: %w", err)
	}
	for id := range leases {
		payloadKeys = append(payloadKeys, id)
	}

	if len(payloadKeys) > 0 {
		if err := q.storage.Delete(ctx, payloadKeys...); err != nil {
			return fmt.Errorf("failed to delete payloads: %w", err)
		}
	}
	if err := q.storage.Delete(ctx, q.attemptsKey, q.lockedKey, q.name, q.highKey); err != nil {
		return fmt.Errorf("failed to delete queue keys: %w", err)
	}
	return nil
}

// Delete resets the queue and removes its entry from the registry.
func (q *Queue) Delete(ctx context.Context) error {
	if err := q.Reset(ctx); err != nil {
		return err
	}
	if err := q.storage.HDelete(ctx, registryKey, q.name); err != nil {
		return fmt.Errorf("failed to deregister queue %q: %w", q.name, err)
	}
	return nil
}

// PutResult stores a write-once processing result for the job, retained for
// 24 hours.
func (q *Queue) PutResult(ctx context.Context, jobID string, data []byte) error {
	if !q.results {
		return ErrResultsNotEnabled
	}
	if len(data) == 0 {
		return ErrEmptyResult
	}

	written, err := q.storage.SetNX(ctx, resultKey(jobID), data, resultRetention)
	if err != nil {
		return fmt.Errorf("failed to store result for job %s: %w", jobID, err)
	}
	if !written {
		return fmt.Errorf("%w: job %s", ErrDuplicateResult, jobID)
	}
	return nil
}

// GetResult returns the stored result for the job, or (nil, nil) if none
// exists.
func (q *Queue) GetResult(ctx context.Context, jobID string) ([]byte, error) {
	if !q.results {
		return nil, ErrResultsNotEnabled
	}
	data, err := q.storage.Get(ctx, resultKey(jobID))
	if err != nil {
		return nil, fmt.Errorf("failed to load result for job %s: %w", jobID, err)
	}
	return data, nil
}

// Attempts returns the current attempt count for the job. Jobs never leased
// or retried report zero.
func (q *Queue) Attempts(ctx context.Context, jobID string) (int, error) {
	raw, err := q.storage.HGet(ctx, q.attemptsKey, jobID)
	if err != nil {
		return 0, fmt.Errorf("failed to load attempts for job %s: %w", jobID, err)
	}
	if raw == nil {
		return 0, nil
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: attempts %q for job %s", ErrMalformedValue, raw, jobID)
	}
	return n, nil
}

// Acked reports whether a completion acknowledgement is still retained for
// the job.
func (q *Queue) Acked(ctx context.Context, jobID string) (bool, error) {
	if !q.ack {
		return false, ErrAckNotEnabled
	}
	acked, err := q.storage.Exists(ctx, ackKey(jobID))
	if err != nil {
		return false, fmt.Errorf("failed to check ack for job %s: %w", jobID, err)
	}
	return acked, nil
}

// DeadLetters returns every entry currently held in the dead-letter store.
func (q *Queue) DeadLetters(ctx context.Context) ([]DeadLetter, error) {
	if !q.deadLetter {
		return nil, ErrDeadLetterNotEnabled
	}

	raw, err := q.storage.HGetAll(ctx, q.deadKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read dead-letter store: %w", err)
	}

	entries := make([]DeadLetter, 0, len(raw))
	for id, data := range raw {
		var entry DeadLetter
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, fmt.Errorf("failed to decode dead-letter entry for job %s: %w", id, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ReplayDead re-enqueues a dead-lettered job's preserved payload as a fresh
// job on the normal lane and removes the dead-letter entry.
func (q *Queue) ReplayDead(ctx context.Context, jobID string) (*Job, error) {
	if !q.deadLetter {
		return nil, ErrDeadLetterNotEnabled
	}

	raw, err := q.storage.HGet(ctx, q.deadKey, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to read dead-letter entry for job %s: %w", jobID, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: %s", ErrDeadLetterNotFound, jobID)
	}

	var entry DeadLetter
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode dead-letter entry for job %s: %w", jobID, err)
	}

	job, err := q.Enqueue(ctx, entry.Payload)
	if err != nil {
		return nil, err
	}
	if err := q.storage.HDelete(ctx, q.deadKey, jobID); err != nil {
		return nil, fmt.Errorf("failed to remove dead-letter entry for job %s: %w", jobID, err)
	}
	return job, nil
}

// reclaim scans the lease table and returns every expired lease to its
// originating lane. An unresponsive consumer is treated as a deferral, so the
// attempt counter is left untouched. Leases whose payload no longer exists
// are dropped together with their counters instead of being requeued.
func (q *Queue) reclaim(ctx context.Context) error {
	leases, err := q.storage.HGetAll(ctx, q.lockedKey)
	if err != nil {
		return fmt.Errorf("failed to scan lease table: %w", err)
	}

	now := time.Now()
	for id, raw := range leases {
		leasedAt, err := parseTimestamp(raw)
		if err != nil {
			return fmt.Errorf("%w: lease %q for job %s", ErrMalformedValue, raw, id)
		}
		if now.Sub(leasedAt) <= q.leaseTimeout {
			continue
		}

		alive, err := q.storage.Exists(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to check payload for job %s: %w", id, err)
		}
		if alive {
			// Push before clearing the lease: a crash in between leaves the
			// job both queued and leased, which the next pass resolves, while
			// the reverse order could lose it entirely.
			if err := q.storage.LPush(ctx, q.laneKey(q.laneOf(id)), id); err != nil {
				return fmt.Errorf("failed to requeue reclaimed job %s: %w", id, err)
			}
			if err := q.storage.HDelete(ctx, q.lockedKey, id); err != nil {
				return fmt.Errorf("failed to clear reclaimed lease for job %s: %w", id, err)
			}
			continue
		}

		if err := q.storage.HDelete(ctx, q.lockedKey, id); err != nil {
			return fmt.Errorf("failed to clear orphaned lease for job %s: %w", id, err)
		}
		if err := q.storage.HDelete(ctx, q.attemptsKey, id); err != nil {
			return fmt.Errorf("failed to clear orphaned attempts for job %s: %w", id, err)
		}
	}
	return nil
}

// requeue pushes the job back onto its originating lane and clears its lease.
// The push happens first so a crash in between cannot strand the job outside
// both the lane and the lease table.
func (q *Queue) requeue(ctx context.Context, jobID string) error {
	if err := q.storage.LPush(ctx, q.laneKey(q.laneOf(jobID)), jobID); err != nil {
		return fmt.Errorf("failed to requeue job %s: %w", jobID, err)
	}
	if err := q.storage.HDelete(ctx, q.lockedKey, jobID); err != nil {
		return fmt.Errorf("failed to clear lease for job %s: %w", jobID, err)
	}
	return nil
}

// removeJob deletes the job's lease entry, attempt counter, and payload.
func (q *Queue) removeJob(ctx context.Context, jobID string) error {
	if err := q.storage.HDelete(ctx, q.lockedKey, jobID); err != nil {
		return fmt.Errorf("failed to clear lease for job %s: %w", jobID, err)
	}
	if err := q.storage.HDelete(ctx, q.attemptsKey, jobID); err != nil {
		return fmt.Errorf("failed to clear attempts for job %s: %w", jobID, err)
	}
	if err := q.storage.Delete(ctx, jobID); err != nil {
		return fmt.Errorf("failed to delete payload for job %s: %w", jobID, err)
	}
	return nil
}

// pickLane selects the lane to pop from. With priority enabled the high lane
// wins while non-empty unless ignored, in which case the choice is uniform
// across non-empty lanes. Returns ErrEmptyQueue when every lane is drained.
func (q *Queue) pickLane(ctx context.Context, ignorePriority bool) (Lane, error) {
	if !q.priority {
		empty, err := q.laneEmpty(ctx, q.name)
		if err != nil {
			return "", err
		}
		if empty {
			return "", ErrEmptyQueue
		}
		return LaneNormal, nil
	}

	normalEmpty, err := q.laneEmpty(ctx, q.name)
	if err != nil {
		return "", err
	}
	highEmpty, err := q.laneEmpty(ctx, q.highKey)
	if err != nil {
		return "", err
	}

	switch {
	case normalEmpty && highEmpty:
		return "", ErrEmptyQueue
	case highEmpty:
		return LaneNormal, nil
	case normalEmpty:
		return LaneHigh, nil
	case ignorePriority:
		if rand.IntN(2) == 0 {
			return LaneNormal, nil
		}
		return LaneHigh, nil
	default:
		return LaneHigh, nil
	}
}

func (q *Queue) laneEmpty(ctx context.Context, laneKey string) (bool, error) {
	n, err := q.storage.LLen(ctx, laneKey)
	if err != nil {
		return false, fmt.Errorf("failed to measure lane %s: %w", laneKey, err)
	}
	return n == 0, nil
}

// newJobID generates a lane-scoped job id. The lane marker embedded in the
// prefix lets every later transition infer the originating lane from the id
// alone.
func (q *Queue) newJobID(lane Lane) string {
	if lane == LaneHigh {
		return q.highKey + ":" + uuid.NewString()
	}
	return q.name + ":" + uuid.NewString()
}

func (q *Queue) laneOf(jobID string) Lane {
	if strings.HasPrefix(jobID, q.highKey+":") {
		return LaneHigh
	}
	return LaneNormal
}

func (q *Queue) laneKey(lane Lane) string {
	if lane == LaneHigh {
		return q.highKey
	}
	return q.name
}

func timestampBytes(t time.Time) []byte {
	return strconv.AppendInt(nil, t.UnixMilli(), 10)
}

func parseTimestamp(raw []byte) (time.Time, error) {
	ms, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
