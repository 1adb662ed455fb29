package jobqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/linegrid/linegrid/pkg/store/document"
	"github.com/linegrid/linegrid/pkg/store/document/doctest"
)

func withFrozenClock(t *testing.T, now time.Time) {
	t.Helper()
	orig := document.Now
	document.Now = func() time.Time { return now }
	t.Cleanup(func() { document.Now = orig })
}

func TestQueue_ClaimIsFIFO(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	withFrozenClock(t, now)

	q := New(doctest.New())
	ctx := context.Background()

	firstID, err := q.Create(ctx, "file-1")
	require.NoError(t, err)
	withFrozenClock(t, now.Add(time.Second))
	_, err = q.Create(ctx, "file-2")
	require.NoError(t, err)

	claimed, err := q.Claim(ctx, "worker-a", 5*time.Minute)
	require.NoError(t, err)
	require.Equal(t, firstID, claimed.ID)
	require.Equal(t, StateInProgress, claimed.State)
	require.Equal(t, 1, claimed.Attempts)
	require.NotNil(t, claimed.WorkerID)
	require.Equal(t, "worker-a", *claimed.WorkerID)
}

func TestQueue_ClaimReturnsErrNoJobAvailableWhenEmpty(t *testing.T) {
	q := New(doctest.New())
	_, err := q.Claim(context.Background(), "w1", time.Minute)
	require.ErrorIs(t, err, ErrNoJobAvailable)
}

func TestQueue_CompleteRequiresOwnership(t *testing.T) {
	q := New(doctest.New())
	ctx := context.Background()

	id, err := q.Create(ctx, "file-1")
	require.NoError(t, err)
	_, err = q.Claim(ctx, "worker-a", time.Minute)
	require.NoError(t, err)

	err = q.Complete(ctx, id, "worker-b", Progress{LinesProcessed: 10})
	require.ErrorIs(t, err, ErrNotFound)

	err = q.Complete(ctx, id, "worker-a", Progress{LinesProcessed: 10, RecordsInserted: 9, RecordsFailed: 1})
	require.NoError(t, err)

	job, err := q.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StateCompleted, job.State)
	require.Equal(t, 10, job.Progress.LinesProcessed)
}

func TestQueue_FailRequeuesUntilMaxAttempts(t *testing.T) {
	q := New(doctest.New())
	ctx := context.Background()

	id, err := q.Create(ctx, "file-1")
	require.NoError(t, err)

	claimed, err := q.Claim(ctx, "worker-a", time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, claimed.Attempts)

	require.NoError(t, q.Fail(ctx, id, "worker-a", "boom", 3, 100))
	job, err := q.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StateQueued, job.State)
	require.Nil(t, job.WorkerID)

	claimed, err = q.Claim(ctx, "worker-b", time.Minute)
	require.NoError(t, err)
	require.Equal(t, 2, claimed.Attempts)
	require.NoError(t, q.Fail(ctx, id, "worker-b", "boom again", 3, 100))

	claimed, err = q.Claim(ctx, "worker-c", time.Minute)
	require.NoError(t, err)
	require.Equal(t, 3, claimed.Attempts)
	require.NoError(t, q.Fail(ctx, id, "worker-c", "final boom", 3, 100))

	job, err = q.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StateFailed, job.State)
	require.Equal(t, []string{"boom", "boom again", "final boom"}, job.ErrorTail)
}

func TestQueue_AppendErrorCapsTail(t *testing.T) {
	q := New(doctest.New())
	ctx := context.Background()

	id, err := q.Create(ctx, "file-1")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, q.AppendError(ctx, id, "line error", 3))
	}

	job, err := q.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, job.ErrorTail, 3)
}

func TestQueue_RecoverStaleRequeuesExpiredLocks(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	withFrozenClock(t, now)

	q := New(doctest.New())
	ctx := context.Background()

	id, err := q.Create(ctx, "file-1")
	require.NoError(t, err)
	_, err = q.Claim(ctx, "worker-a", time.Minute)
	require.NoError(t, err)

	withFrozenClock(t, now.Add(10*time.Minute))

	recovered, err := q.RecoverStale(ctx, 5*time.Minute, 3, 10)
	require.NoError(t, err)
	require.Equal(t, 1, recovered)

	job, err := q.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StateQueued, job.State)
	require.Nil(t, job.WorkerID)
}

func TestQueue_RecoverStaleFailsJobsPastMaxAttempts(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	withFrozenClock(t, now)

	q := New(doctest.New())
	ctx := context.Background()

	id, err := q.Create(ctx, "file-1")
	require.NoError(t, err)
	_, err = q.Claim(ctx, "worker-a", time.Minute)
	require.NoError(t, err)

	// Simulate a job already on its last allowed attempt when its worker
	// dies mid-job, without driving three real claim/fail cycles.
	_, err = q.store.UpdateMany(ctx, collection,
		document.Filter{All: []document.Cond{{Field: "id", Op: document.OpEq, Value: id}}},
		document.Update{Set: map[string]any{"attempts": 3}},
	)
	require.NoError(t, err)

	withFrozenClock(t, now.Add(10*time.Minute))

	recovered, err := q.RecoverStale(ctx, 5*time.Minute, 3, 10)
	require.NoError(t, err)
	require.Equal(t, 0, recovered)

	job, err := q.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StateFailed, job.State)
	require.Contains(t, job.ErrorTail, staleMessage)
	require.Nil(t, job.WorkerID)
}

func TestQueue_RecoverStaleLeavesHealthyJobsAlone(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	withFrozenClock(t, now)

	q := New(doctest.New())
	ctx := context.Background()

	id, err := q.Create(ctx, "file-1")
	require.NoError(t, err)
	_, err = q.Claim(ctx, "worker-a", 30*time.Minute)
	require.NoError(t, err)

	recovered, err := q.RecoverStale(ctx, 5*time.Minute, 3, 10)
	require.NoError(t, err)
	require.Equal(t, 0, recovered)

	job, err := q.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StateInProgress, job.State)
}

func TestQueue_UpdateProgressRenewsLock(t *testing.T) {
	q := New(doctest.New())
	ctx := context.Background()

	id, err := q.Create(ctx, "file-1")
	require.NoError(t, err)
	_, err = q.Claim(ctx, "worker-a", time.Minute)
	require.NoError(t, err)

	require.NoError(t, q.UpdateProgress(ctx, id, "worker-a", Progress{LinesProcessed: 500}, 5*time.Minute))

	job, err := q.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 500, job.Progress.LinesProcessed)

	err = q.UpdateProgress(ctx, id, "worker-wrong", Progress{LinesProcessed: 999}, time.Minute)
	require.ErrorIs(t, err, ErrNotFound)
}
