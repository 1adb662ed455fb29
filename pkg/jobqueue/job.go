// Package jobqueue implements the job queue (C4): durable job records that
// move through a small state machine (queued -> in_progress -> completed or
// failed), claimed atomically by workers and re-queued automatically if a
// worker dies mid-processing.
//
// Rather than a single struct with every field always present, Job carries
// pointer fields (StartedAt, CompletedAt, LockUntil, WorkerID) that are nil
// until the job first reaches a state they apply to — closer to a tagged
// union than a loosely-typed record, while staying a plain struct so the
// rest of the codebase doesn't need a type switch to read it. A requeue
// (from Fail or RecoverStale) clears WorkerID and LockUntil but leaves
// StartedAt at the time of the most recent claim.
package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linegrid/linegrid/pkg/store/document"
)

const collection = "jobs"

// State is a job's position in its lifecycle.
type State string

const (
	StateQueued     State = "queued"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Progress tracks a job's line-processing counters as the worker streams
// through the source file.
type Progress struct {
	LinesProcessed  int
	RecordsInserted int
	RecordsFailed   int
}

// Job is one unit of file-processing work.
type Job struct {
	ID        string
	FileID    string
	State     State
	Attempts  int
	Progress  Progress
	ErrorTail []string

	WorkerID    *string
	QueuedAt    time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	LockUntil   *time.Time
}

// ErrNotFound is returned when a job id has no queue entry.
var ErrNotFound = fmt.Errorf("jobqueue: job not found")

// ErrNoJobAvailable is returned by Claim when no queued job is waiting.
var ErrNoJobAvailable = fmt.Errorf("jobqueue: no job available")

// Metrics is the collector interface the queue reports claim, completion,
// failure, and recovery counts through. A nil Metrics disables
// instrumentation.
type Metrics interface {
	RecordClaim()
	RecordComplete()
	RecordFail(requeued bool)
	RecordRecovered(n int)
}

// Queue is the job queue.
type Queue struct {
	store   document.Store
	metrics Metrics
}

// New builds a Queue backed by store.
func New(store document.Store) *Queue {
	return &Queue{store: store}
}

// SetMetrics attaches a collector that receives claim/completion/failure
// counts for every call made through q. Passing nil disables reporting.
func (q *Queue) SetMetrics(m Metrics) {
	q.metrics = m
}

// Create enqueues a new job for fileID and returns its generated id.
func (q *Queue) Create(ctx context.Context, fileID string) (string, error) {
	doc := map[string]any{
		"file_id":          fileID,
		"state":            string(StateQueued),
		"attempts":         0,
		"lines_processed":  0,
		"records_inserted": 0,
		"records_failed":   0,
		"error_tail":       []any{},
		"queued_at":        document.Now().UTC(),
	}
	id, err := q.store.InsertOne(ctx, collection, doc)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}
	return id, nil
}

// Claim atomically selects the oldest queued job (FIFO, ties broken by id),
// marks it in_progress under workerID, and locks it for lockTimeout. It
// returns ErrNoJobAvailable if the queue is empty.
func (q *Queue) Claim(ctx context.Context, workerID string, lockTimeout time.Duration) (*Job, error) {
	now := document.Now().UTC()
	doc, err := q.store.FindOneAndUpdate(ctx, collection,
		document.Filter{All: []document.Cond{{Field: "state", Op: document.OpEq, Value: string(StateQueued)}}},
		document.Update{
			Set: map[string]any{
				"state":      string(StateInProgress),
				"worker_id":  workerID,
				"started_at": now,
				"lock_until": now.Add(lockTimeout),
			},
			Inc: map[string]any{"attempts": 1},
		},
		document.Sort{{Field: "queued_at", Ascending: true}, {Field: "id", Ascending: true}},
	)
	if err != nil {
		if errors.Is(err, document.ErrNoDocuments) {
			return nil, ErrNoJobAvailable
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	if q.metrics != nil {
		q.metrics.RecordClaim()
	}
	return fromDoc(doc)
}

// Get looks up a job by id.
func (q *Queue) Get(ctx context.Context, id string) (*Job, error) {
	doc, err := q.store.FindOne(ctx, collection,
		document.Filter{All: []document.Cond{{Field: "id", Op: document.OpEq, Value: id}}},
		nil,
	)
	if err != nil {
		return nil, ErrNotFound
	}
	return fromDoc(doc)
}

// UpdateProgress reports processing progress and renews the job's lock, so
// a long-running job isn't mistaken for abandoned by RecoverStale while its
// worker is still alive. ownerWorkerID must match the worker that holds the
// job's lock and the job must still be in_progress; otherwise nothing is
// updated and ErrNotFound is returned (the job has moved on).
func (q *Queue) UpdateProgress(ctx context.Context, id, ownerWorkerID string, progress Progress, lockTimeout time.Duration) error {
	matched, err := q.store.UpdateMany(ctx, collection,
		document.Filter{All: []document.Cond{
			{Field: "id", Op: document.OpEq, Value: id},
			{Field: "worker_id", Op: document.OpEq, Value: ownerWorkerID},
			{Field: "state", Op: document.OpEq, Value: string(StateInProgress)},
		}},
		document.Update{Set: map[string]any{
			"lines_processed":  progress.LinesProcessed,
			"records_inserted": progress.RecordsInserted,
			"records_failed":   progress.RecordsFailed,
			"lock_until":       document.Now().UTC().Add(lockTimeout),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	if matched == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendError records a per-line parse/validation failure in the job's
// bounded error tail, evicting the oldest entry once the tail is full.
func (q *Queue) AppendError(ctx context.Context, id string, message string, maxErrorTail int) error {
	_, err := q.store.UpdateMany(ctx, collection,
		document.Filter{All: []document.Cond{{Field: "id", Op: document.OpEq, Value: id}}},
		document.Update{PushCapped: &document.PushCapped{Field: "error_tail", Value: message, Cap: maxErrorTail}},
	)
	if err != nil {
		return fmt.Errorf("failed to append job error: %w", err)
	}
	return nil
}

// Complete marks a job finished successfully.
func (q *Queue) Complete(ctx context.Context, id, ownerWorkerID string, progress Progress) error {
	matched, err := q.store.UpdateMany(ctx, collection,
		document.Filter{All: []document.Cond{
			{Field: "id", Op: document.OpEq, Value: id},
			{Field: "worker_id", Op: document.OpEq, Value: ownerWorkerID},
		}},
		document.Update{Set: map[string]any{
			"state":            string(StateCompleted),
			"completed_at":     document.Now().UTC(),
			"lines_processed":  progress.LinesProcessed,
			"records_inserted": progress.RecordsInserted,
			"records_failed":   progress.RecordsFailed,
			"lock_until":       nil,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	if matched == 0 {
		return ErrNotFound
	}
	if q.metrics != nil {
		q.metrics.RecordComplete()
	}
	return nil
}

// Fail records that processing a job ended in an unrecoverable error. If
// the job has already been claimed maxAttempts times it is marked
// permanently failed; otherwise it's put back on the queue for another
// worker to pick up.
func (q *Queue) Fail(ctx context.Context, id, ownerWorkerID, reason string, maxAttempts, maxErrorTail int) error {
	job, err := q.Get(ctx, id)
	if err != nil {
		return err
	}

	requeued := job.Attempts < maxAttempts
	next := map[string]any{
		"lock_until": nil,
		"worker_id":  nil,
	}
	if requeued {
		next["state"] = string(StateQueued)
	} else {
		next["state"] = string(StateFailed)
		next["completed_at"] = document.Now().UTC()
	}

	matched, err := q.store.UpdateMany(ctx, collection,
		document.Filter{All: []document.Cond{
			{Field: "id", Op: document.OpEq, Value: id},
			{Field: "worker_id", Op: document.OpEq, Value: ownerWorkerID},
		}},
		document.Update{Set: next, PushCapped: &document.PushCapped{Field: "error_tail", Value: reason, Cap: maxErrorTail}},
	)
	if err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}
	if matched == 0 {
		return ErrNotFound
	}
	if q.metrics != nil {
		q.metrics.RecordFail(requeued)
	}
	return nil
}

// staleMessage is recorded in a job's error tail when RecoverStale finds it
// abandoned and out of attempts.
const staleMessage = "exceeded maximum attempts and became stale"

// RecoverStale sweeps in_progress jobs whose lock has expired or that were
// claimed more than staleThreshold ago (started_at is set by Claim and not
// moved by UpdateProgress) — both symptoms of a worker that died mid-job. Jobs with attempts still
// under maxAttempts are put back on the queue for another worker; jobs that
// have already exhausted their attempts are instead marked permanently
// failed, so a repeatedly-crashing job doesn't cycle forever. It returns the
// number of jobs requeued.
func (q *Queue) RecoverStale(ctx context.Context, staleThreshold time.Duration, maxAttempts, maxErrorTail int) (int, error) {
	now := document.Now().UTC()
	staleCond := []document.Cond{{Field: "state", Op: document.OpEq, Value: string(StateInProgress)}}
	staleAny := []document.Filter{
		{All: []document.Cond{{Field: "lock_until", Op: document.OpLt, Value: now}}},
		{All: []document.Cond{{Field: "started_at", Op: document.OpLt, Value: now.Add(-staleThreshold)}}},
	}

	failed, err := q.store.UpdateMany(ctx, collection,
		document.Filter{
			All: append(append([]document.Cond{}, staleCond...), document.Cond{Field: "attempts", Op: document.OpGte, Value: maxAttempts}),
			Any: staleAny,
		},
		document.Update{
			Set: map[string]any{
				"state":        string(StateFailed),
				"completed_at": now,
				"worker_id":    nil,
				"lock_until":   nil,
			},
			PushCapped: &document.PushCapped{Field: "error_tail", Value: staleMessage, Cap: maxErrorTail},
		},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to fail stale jobs past max attempts: %w", err)
	}
	if q.metrics != nil {
		for i := 0; i < failed; i++ {
			q.metrics.RecordFail(false)
		}
	}

	requeued, err := q.store.UpdateMany(ctx, collection,
		document.Filter{
			All: append(append([]document.Cond{}, staleCond...), document.Cond{Field: "attempts", Op: document.OpLt, Value: maxAttempts}),
			Any: staleAny,
		},
		document.Update{Set: map[string]any{
			"state":      string(StateQueued),
			"worker_id":  nil,
			"lock_until": nil,
		}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to recover stale jobs: %w", err)
	}
	if q.metrics != nil && requeued > 0 {
		q.metrics.RecordRecovered(requeued)
	}
	return requeued, nil
}
