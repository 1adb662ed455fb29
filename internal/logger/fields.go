package logger

// Standard structured-log field keys, used consistently across ingest,
// cataloging, queuing and processing so that log aggregation/querying does
// not depend on free-form message text.
const (
	KeyFileID     = "file_id"
	KeyJobID      = "job_id"
	KeyWorkerID   = "worker_id"
	KeyObjectKey  = "object_key"
	KeyLineNumber = "line_number"
	KeyAttempt    = "attempt"
	KeyState      = "state"
	KeyBatchSize  = "batch_size"
	KeyCollection = "collection"
	KeyDuration   = "duration_ms"
	KeyError      = "error"
	KeyBytes      = "bytes"
)
