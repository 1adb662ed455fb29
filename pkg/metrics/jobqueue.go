package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/linegrid/linegrid/pkg/jobqueue"
)

// jobQueueMetrics is the Prometheus implementation of jobqueue.Metrics.
type jobQueueMetrics struct {
	claimsTotal    prometheus.Counter
	completedTotal prometheus.Counter
	failedTotal    prometheus.Counter
	requeuedTotal  prometheus.Counter
	recoveredTotal prometheus.Counter
}

// NewJobQueueMetrics returns a Prometheus-backed jobqueue.Metrics, or nil
// when metrics are disabled.
func NewJobQueueMetrics() jobqueue.Metrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()
	return &jobQueueMetrics{
		claimsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "linegrid_jobqueue_claims_total",
			Help: "Total number of jobs claimed by a worker",
		}),
		completedTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "linegrid_jobqueue_completed_total",
			Help: "Total number of jobs that finished successfully",
		}),
		failedTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "linegrid_jobqueue_failed_total",
			Help: "Total number of failed processing attempts, requeued or terminal",
		}),
		requeuedTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "linegrid_jobqueue_requeued_total",
			Help: "Total number of jobs put back on the queue after a failed attempt",
		}),
		recoveredTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "linegrid_jobqueue_recovered_total",
			Help: "Total number of jobs reclaimed from a worker that died mid-processing",
		}),
	}
}

func (m *jobQueueMetrics) RecordClaim()    { m.claimsTotal.Inc() }
func (m *jobQueueMetrics) RecordComplete() { m.completedTotal.Inc() }

func (m *jobQueueMetrics) RecordFail(requeued bool) {
	m.failedTotal.Inc()
	if requeued {
		m.requeuedTotal.Inc()
	}
}

func (m *jobQueueMetrics) RecordRecovered(n int) { m.recoveredTotal.Add(float64(n)) }
