package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/linegrid/linegrid/internal/logger"
	"github.com/linegrid/linegrid/pkg/api/handlers"
	"github.com/linegrid/linegrid/pkg/catalog"
	"github.com/linegrid/linegrid/pkg/ingest"
	"github.com/linegrid/linegrid/pkg/jobqueue"
	"github.com/linegrid/linegrid/pkg/store/document"
	"github.com/linegrid/linegrid/pkg/store/object"
)

// NewRouter builds the chi router serving the upload, process, job status,
// and health endpoints. metricsHandler is mounted at GET /metrics when
// non-nil; pass nil to leave metrics unexposed.
//
// The middleware stack is request ID, real IP extraction, a custom
// internal-logger-backed request logger, panic recovery, and a request
// timeout.
func NewRouter(objectStore object.Store, docStore document.Store, cat *catalog.Catalog, queue *jobqueue.Queue, pipeline *ingest.Pipeline, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	healthHandler := handlers.NewHealthHandler(objectStore, docStore)
	uploadHandler := handlers.NewUploadHandler(pipeline)
	processHandler := handlers.NewProcessHandler(cat, queue)
	jobsHandler := handlers.NewJobsHandler(queue)

	r.Get("/", healthHandler.Banner)
	r.Get("/healthz", healthHandler.Healthz)
	r.Post("/upload", uploadHandler.Upload)
	r.Post("/process/{file_id}", processHandler.Process)
	r.Get("/jobs/{job_id}", jobsHandler.Get)

	if metricsHandler != nil {
		r.Get("/metrics", metricsHandler.ServeHTTP)
	}

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.InfoContext(r.Context(), "http request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.KeyDuration, time.Since(start).Milliseconds(),
		)
	})
}
