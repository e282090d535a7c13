package queue

// registryKey is the backend-owned hash mapping queue name → creation
// timestamp. It lives in the store rather than in process memory so that
// engine instances across processes observe a consistent registry.
const registryKey = "QUEUEREGISTER"

// Queue-scoped auxiliary keys are derived by fixed suffixing of the queue
// name; job-scoped keys by suffixing the job id.
const (
	suffixLocked   = ":LOCKED"
	suffixAttempts = ":ATTEMPTS"
	suffixHigh     = ":HIGH"
	suffixDead     = ":DEAD"
	suffixAck      = ":ACK"
	suffixResult   = ":RESULT"
)

// Lane identifies which pending list a job belongs to.
type Lane string

const (
	// LaneNormal is the default pending list, keyed by the queue name itself.
	LaneNormal Lane = "normal"
	// LaneHigh is the high-priority pending list, keyed by <name>:HIGH.
	LaneHigh Lane = "high"
)

func resultKey(jobID string) string { return jobID + suffixResult }

func ackKey(jobID string) string { return jobID + suffixAck }
