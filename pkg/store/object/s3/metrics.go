package s3

import "time"

// Metrics is the collector interface the S3 store reports operation timings
// and active-upload gauges through. A nil Metrics disables instrumentation.
type Metrics interface {
	ObserveOperation(operation string, duration time.Duration, err error)
	RecordActiveUpload(delta int)
}
