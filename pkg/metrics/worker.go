package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/linegrid/linegrid/pkg/worker"
)

// workerMetrics is the Prometheus implementation of worker.Metrics.
type workerMetrics struct {
	linesProcessed  prometheus.Counter
	recordsInserted prometheus.Counter
	recordsFailed   prometheus.Counter
	batchFlushes    prometheus.Counter
}

// NewWorkerMetrics returns a Prometheus-backed worker.Metrics, or nil when
// metrics are disabled.
func NewWorkerMetrics() worker.Metrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()
	return &workerMetrics{
		linesProcessed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "linegrid_worker_lines_processed_total",
			Help: "Total number of source lines scanned across all jobs",
		}),
		recordsInserted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "linegrid_worker_records_inserted_total",
			Help: "Total number of parsed records bulk-inserted into the document store",
		}),
		recordsFailed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "linegrid_worker_records_failed_total",
			Help: "Total number of lines that failed parsing or validation",
		}),
		batchFlushes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "linegrid_worker_batch_flushes_total",
			Help: "Total number of batch flushes to the document store",
		}),
	}
}

func (m *workerMetrics) RecordLinesProcessed(n int)  { m.linesProcessed.Add(float64(n)) }
func (m *workerMetrics) RecordRecordsInserted(n int) { m.recordsInserted.Add(float64(n)) }
func (m *workerMetrics) RecordRecordsFailed(n int)   { m.recordsFailed.Add(float64(n)) }
func (m *workerMetrics) RecordBatchFlush()           { m.batchFlushes.Inc() }
