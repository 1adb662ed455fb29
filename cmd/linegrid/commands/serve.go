package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/linegrid/linegrid/internal/logger"
	"github.com/linegrid/linegrid/internal/telemetry"
	"github.com/linegrid/linegrid/pkg/api"
	"github.com/linegrid/linegrid/pkg/catalog"
	"github.com/linegrid/linegrid/pkg/config"
	"github.com/linegrid/linegrid/pkg/ingest"
	"github.com/linegrid/linegrid/pkg/jobqueue"
	"github.com/linegrid/linegrid/pkg/metrics"
	"github.com/linegrid/linegrid/pkg/store/document/postgres"
	"github.com/linegrid/linegrid/pkg/store/object/s3"
	"github.com/linegrid/linegrid/pkg/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP ingest surface and, optionally, an in-process worker",
	Long: `Start the ingest service: the HTTP server backing POST /upload, POST
/process/:file_id, GET /jobs/:job_id, GET /healthz and GET /. When
worker.enabled is set in configuration, a processing worker is also started
in this process, claiming and processing jobs alongside the server.

Examples:
  linegrid serve
  linegrid serve --config /etc/linegrid/config.yaml
  LINEGRID_WORKER_ENABLED=true linegrid serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	logger.Configure(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "linegrid",
		ServiceVersion: Version,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetryShutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", logger.KeyError, err)
		}
	}()

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("metrics enabled", "path", "/metrics")
	}

	objectStore, err := s3.New(ctx, s3.Config{
		Region:             cfg.Object.Region,
		AccessKeyID:        cfg.Object.AccessKeyID,
		SecretAccessKey:    cfg.Object.SecretAccessKey,
		Bucket:             cfg.Object.Bucket,
		Endpoint:           cfg.Object.Endpoint,
		PartSize:           cfg.Object.PartSize,
		MaxParallelUploads: cfg.Object.MaxParallelUploads,
		Metrics:            metrics.NewObjectStoreMetrics(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize object store: %w", err)
	}

	docStore, err := postgres.New(ctx, postgres.Config{
		DSN:         cfg.Database.DSN,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		AutoMigrate: cfg.Database.AutoMigrate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize document store: %w", err)
	}
	defer docStore.Close()

	cat := catalog.New(docStore)

	queue := jobqueue.New(docStore)
	queue.SetMetrics(metrics.NewJobQueueMetrics())

	pipeline := ingest.New(objectStore, cat, ingest.Config{
		MaxFileSize:      cfg.Upload.MaxFileSize,
		AllowedFileTypes: cfg.Upload.AllowedFileTypes,
	})

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = metrics.Handler()
	}

	router := api.NewRouter(objectStore, docStore, cat, queue, pipeline, metricsHandler)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	var w *worker.Worker
	if cfg.Worker.Enabled {
		w = worker.New(queue, cat, objectStore, docStore, worker.Config{
			WorkerID:       cfg.Worker.ID,
			BatchSize:      cfg.Job.BatchSize,
			WritePause:     cfg.Job.WritePause,
			LockTimeout:    cfg.Job.LockTimeout,
			PollInterval:   cfg.Job.WorkerPollInterval,
			MaxAttempts:    cfg.Job.MaxAttempts,
			MaxErrorTail:   cfg.Job.MaxErrorTail,
			StaleThreshold: cfg.Job.StaleThreshold,
		})
		w.SetMetrics(metrics.NewWorkerMetrics())
		w.Start(ctx)
		logger.Info("processing worker started", logger.KeyWorkerID, cfg.Worker.ID)
	}

	serverDone := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
			return
		}
		serverDone <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, draining in-flight requests")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", logger.KeyError, err)
		}
		<-serverDone
	case err := <-serverDone:
		if err != nil {
			if w != nil {
				w.Stop()
			}
			return fmt.Errorf("http server error: %w", err)
		}
	}

	if w != nil {
		w.Stop()
		logger.Info("processing worker stopped")
	}

	logger.Info("linegrid stopped")
	return nil
}
