package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/linegrid/linegrid/pkg/store/object/s3"
)

// objectStoreMetrics is the Prometheus implementation of s3.Metrics.
type objectStoreMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	activeUploads     prometheus.Gauge
}

// NewObjectStoreMetrics returns a Prometheus-backed s3.Metrics, or nil when
// metrics are disabled. A nil Metrics disables instrumentation in the store
// at zero cost.
func NewObjectStoreMetrics() s3.Metrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()
	return &objectStoreMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "linegrid_object_store_operations_total",
				Help: "Total number of object store operations by operation and outcome",
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "linegrid_object_store_operation_duration_seconds",
				Help:    "Duration of object store operations in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),
		activeUploads: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "linegrid_object_store_active_uploads",
				Help: "Current number of multipart uploads in flight",
			},
		),
	}
}

func (m *objectStoreMetrics) ObserveOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *objectStoreMetrics) RecordActiveUpload(delta int) {
	m.activeUploads.Add(float64(delta))
}
