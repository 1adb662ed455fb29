// Package metrics owns the process-wide Prometheus registry and the
// collector constructors for each component that chooses to report
// instrumentation: the object store, the job queue, and the processing
// worker. Every constructor returns nil when metrics are disabled, so
// callers can pass a possibly-nil collector straight through without an
// extra branch at every call site.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu       sync.Mutex
	registry *prometheus.Registry
	enabled  bool
)

// InitRegistry creates the process-wide Prometheus registry and marks
// metrics enabled. Safe to call once at startup; a second call replaces the
// registry (existing collectors keep reporting into their original one).
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()

	registry = prometheus.NewRegistry()
	registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	enabled = true
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// GetRegistry returns the process-wide registry. Panics if called before
// InitRegistry; callers should guard with IsEnabled first.
func GetRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	if registry == nil {
		panic("metrics: GetRegistry called before InitRegistry")
	}
	return registry
}

// Handler returns the HTTP handler that serves the registry in the
// Prometheus exposition format, for mounting at GET /metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}
