package queue

import "errors"

// Common errors
var (
	// ErrStorageNil is returned when a nil storage backend is provided
	ErrStorageNil = errors.New("storage cannot be nil")

	// ErrInvalidQueueName is returned when the queue name is empty or contains
	// the key separator
	ErrInvalidQueueName = errors.New("queue name must be a non-empty string without ':'")

	// ErrEmptyPayload is returned when attempting to enqueue an empty payload
	ErrEmptyPayload = errors.New("payload cannot be empty")

	// ErrEmptyQueue is returned by Dequeue when no job is available
	ErrEmptyQueue = errors.New("no job available in queue")

	// ErrLockConflict is returned when a popped job is already leased by
	// another consumer; the job is pushed back onto its lane first
	ErrLockConflict = errors.New("job is already leased by another consumer")

	// ErrPriorityNotEnabled is returned when high-priority operations are
	// requested on a queue built without WithPriority
	ErrPriorityNotEnabled = errors.New("priority lane is not enabled for this queue")

	// ErrResultsNotEnabled is returned when result operations are requested on
	// a queue built without WithResults
	ErrResultsNotEnabled = errors.New("result storage is not enabled for this queue")

	// ErrAckNotEnabled is returned when acknowledgement lookups are requested
	// on a queue built without WithAck
	ErrAckNotEnabled = errors.New("acknowledgements are not enabled for this queue")

	// ErrDeadLetterNotEnabled is returned when dead-letter operations are
	// requested on a queue built without WithDeadLetter
	ErrDeadLetterNotEnabled = errors.New("dead-letter store is not enabled for this queue")

	// ErrDeadLetterNotFound is returned when replaying a job id that is not in
	// the dead-letter store
	ErrDeadLetterNotFound = errors.New("job not found in dead-letter store")

	// ErrDuplicateResult is returned when attempting to overwrite a
	// write-once result
	ErrDuplicateResult = errors.New("result exists already and cannot be overwritten")

	// ErrEmptyResult is returned when attempting to store an empty result
	ErrEmptyResult = errors.New("cannot save empty result")

	// ErrAlreadyResolved is returned when a second terminal call is made on a
	// job handle that has already been completed, failed, or deferred
	ErrAlreadyResolved = errors.New("job has already been resolved")

	// ErrMalformedValue is returned when a stored counter or timestamp cannot
	// be parsed as a number
	ErrMalformedValue = errors.New("malformed numeric value in storage")

	// ErrQueueNil is returned when a worker is constructed without a queue
	ErrQueueNil = errors.New("queue cannot be nil")

	// ErrNoHandler is returned when a worker is constructed without a handler
	ErrNoHandler = errors.New("no job handler provided")
)
