// Package worker implements the processing worker: a loop that claims
// jobs from the queue, streams the job's file back out of the object
// store, parses it line by line with per-line error isolation, and
// bulk-inserts validated records into the document store.
//
// Its claim/poll/shutdown shape is a ticking loop started with Start(ctx)
// and stopped with Stop(), which cancels the loops and waits for their
// goroutines to return.
package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/linegrid/linegrid/internal/logger"
	"github.com/linegrid/linegrid/pkg/catalog"
	"github.com/linegrid/linegrid/pkg/jobqueue"
	"github.com/linegrid/linegrid/pkg/parser"
	"github.com/linegrid/linegrid/pkg/store/document"
	"github.com/linegrid/linegrid/pkg/store/object"
)

// maxScanTokenSize bounds a single line's length. A line longer than this
// stops the scan with bufio.ErrTooLong, which fails the whole job (through
// Fail) rather than being recorded as a per-line error.
const maxScanTokenSize = 1 << 20 // 1 MiB

// Config controls worker behavior.
type Config struct {
	WorkerID     string
	BatchSize    int
	WritePause   time.Duration
	LockTimeout  time.Duration
	PollInterval time.Duration
	MaxAttempts  int
	MaxErrorTail int

	// StaleThreshold is the RecoverStale sweep's age threshold: in_progress
	// jobs claimed longer ago than this (or whose lock has expired) are
	// requeued, or marked failed once they have used MaxAttempts.
	// Zero disables the sweep (useful in tests that drive Claim directly).
	StaleThreshold time.Duration
}

// Metrics is the collector interface the worker reports per-job line and
// record counts through. A nil Metrics disables instrumentation.
type Metrics interface {
	RecordLinesProcessed(n int)
	RecordRecordsInserted(n int)
	RecordRecordsFailed(n int)
	RecordBatchFlush()
}

// Worker claims and processes jobs until stopped.
type Worker struct {
	queue       *jobqueue.Queue
	catalog     *catalog.Catalog
	objectStore object.Store
	docStore    document.Store
	cfg         Config
	metrics     Metrics

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Worker.
func New(queue *jobqueue.Queue, cat *catalog.Catalog, objectStore object.Store, docStore document.Store, cfg Config) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Worker{queue: queue, catalog: cat, objectStore: objectStore, docStore: docStore, cfg: cfg}
}

// SetMetrics attaches a collector that receives line and record counts as
// jobs are processed. Passing nil disables reporting.
func (w *Worker) SetMetrics(m Metrics) {
	w.metrics = m
}

// Start begins the claim loop, and a stale-job recovery sweep when
// cfg.StaleThreshold is set, in background goroutines.
func (w *Worker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go w.run(ctx)

	if w.cfg.StaleThreshold > 0 {
		w.wg.Add(1)
		go w.runRecovery(ctx)
	}
}

// Stop cancels the loops' context and waits for their goroutines to exit.
// An in-flight job is not run to completion: processFile returns the
// context error at its next line, and the job goes through Fail.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		claimed, err := w.queue.Claim(ctx, w.cfg.WorkerID, w.cfg.LockTimeout)
		if err != nil {
			if errors.Is(err, jobqueue.ErrNoJobAvailable) {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
				continue
			}
			logger.ErrorContext(ctx, "failed to claim job", logger.KeyError, err)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			continue
		}

		w.processJob(ctx, claimed)
	}
}

// runRecovery periodically requeues jobs abandoned by a dead worker. It
// runs at half the stale threshold so a lock or progress gap is caught
// well before it would otherwise be mistaken for still-active work.
func (w *Worker) runRecovery(ctx context.Context) {
	defer w.wg.Done()

	interval := w.cfg.StaleThreshold / 2
	if interval <= 0 {
		interval = w.cfg.StaleThreshold
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.queue.RecoverStale(ctx, w.cfg.StaleThreshold, w.cfg.MaxAttempts, w.cfg.MaxErrorTail)
			if err != nil {
				logger.ErrorContext(ctx, "stale job recovery failed", logger.KeyError, err)
				continue
			}
			if n > 0 {
				logger.InfoContext(ctx, "recovered stale jobs", "count", n)
			}
		}
	}
}

func (w *Worker) processJob(ctx context.Context, job *jobqueue.Job) {
	logger.InfoContext(ctx, "processing job",
		logger.KeyJobID, job.ID,
		logger.KeyFileID, job.FileID,
		logger.KeyWorkerID, w.cfg.WorkerID,
		logger.KeyAttempt, job.Attempts,
	)

	progress, err := w.processFile(ctx, job)
	if err != nil {
		logger.ErrorContext(ctx, "job processing failed",
			logger.KeyJobID, job.ID,
			logger.KeyError, err,
		)
		if failErr := w.queue.Fail(ctx, job.ID, w.cfg.WorkerID, err.Error(), w.cfg.MaxAttempts, w.cfg.MaxErrorTail); failErr != nil {
			logger.ErrorContext(ctx, "failed to record job failure", logger.KeyJobID, job.ID, logger.KeyError, failErr)
		}
		return
	}

	if err := w.queue.Complete(ctx, job.ID, w.cfg.WorkerID, *progress); err != nil {
		logger.ErrorContext(ctx, "failed to mark job complete", logger.KeyJobID, job.ID, logger.KeyError, err)
	}
}

// processFile performs the actual streaming parse-and-insert work for one
// job. Per-line parse/validation failures are isolated: they're recorded
// and counted, never treated as reasons to abort the whole file. A failed
// batch insert degrades the job the same way — its rows count as failed
// and scanning continues. Only a failure to read the source stream itself
// aborts the job.
func (w *Worker) processFile(ctx context.Context, job *jobqueue.Job) (*jobqueue.Progress, error) {
	file, err := w.catalog.Get(ctx, job.FileID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up file %s: %w", job.FileID, err)
	}

	parse, err := parser.SelectParser(file.ContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to select parser: %w", err)
	}

	stream, err := w.objectStore.GetStream(ctx, file.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("failed to open file stream: %w", err)
	}
	defer stream.Close()

	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 0, 64*1024), maxScanTokenSize)

	progress := jobqueue.Progress{}
	batch := make([]map[string]any, 0, w.cfg.BatchSize)
	lineNumber := 0

	// flush never aborts the job on its own: a batch that fails to insert
	// is counted as failed records (degraded) and processing moves on to
	// the next batch, rather than losing every line scanned after it.
	flush := func() {
		if len(batch) == 0 {
			return
		}
		inserted, err := w.docStore.BulkInsertUnordered(ctx, "parsed_records", batch)
		if err != nil {
			logger.ErrorContext(ctx, "batch insert failed, counting batch as failed", logger.KeyJobID, job.ID, logger.KeyError, err)
			progress.RecordsFailed += len(batch)
			if w.metrics != nil {
				w.metrics.RecordRecordsFailed(len(batch))
			}
			batch = batch[:0]
			return
		}
		progress.RecordsInserted += inserted
		batch = batch[:0]

		if w.metrics != nil {
			w.metrics.RecordRecordsInserted(inserted)
			w.metrics.RecordBatchFlush()
		}

		if err := w.queue.UpdateProgress(ctx, job.ID, w.cfg.WorkerID, progress, w.cfg.LockTimeout); err != nil {
			logger.WarnContext(ctx, "failed to report progress", logger.KeyJobID, job.ID, logger.KeyError, err)
		}
		if w.cfg.WritePause > 0 {
			time.Sleep(w.cfg.WritePause)
		}
	}

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lineNumber++
		line := scanner.Text()

		record, lerr := parse(line, lineNumber)
		if lerr != nil {
			if !lerr.Skip {
				progress.RecordsFailed++
				if w.metrics != nil {
					w.metrics.RecordRecordsFailed(1)
				}
				if appendErr := w.queue.AppendError(ctx, job.ID, lerr.Error(), w.cfg.MaxErrorTail); appendErr != nil {
					logger.WarnContext(ctx, "failed to append job error", logger.KeyJobID, job.ID, logger.KeyError, appendErr)
				}
			}
			progress.LinesProcessed++
			if w.metrics != nil {
				w.metrics.RecordLinesProcessed(1)
			}
			continue
		}

		doc := make(map[string]any, len(record.Fields)+3)
		for k, v := range record.Fields {
			doc[k] = v
		}
		doc["job_id"] = job.ID
		doc["file_id"] = job.FileID
		doc["line_number"] = record.LineNumber

		batch = append(batch, doc)
		progress.LinesProcessed++
		if w.metrics != nil {
			w.metrics.RecordLinesProcessed(1)
		}

		if len(batch) >= w.cfg.BatchSize {
			flush()
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file stream: %w", err)
	}
	flush()

	return &progress, nil
}
