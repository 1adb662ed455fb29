package worker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/linegrid/linegrid/pkg/catalog"
	"github.com/linegrid/linegrid/pkg/jobqueue"
	"github.com/linegrid/linegrid/pkg/store/document"
	"github.com/linegrid/linegrid/pkg/store/document/doctest"
	"github.com/linegrid/linegrid/pkg/store/object"
)

type fakeObjectStore struct {
	bodies map[string][]byte
	err    error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{bodies: map[string][]byte{}}
}

func (f *fakeObjectStore) PutStream(_ context.Context, key string, body io.Reader, _ string) (object.PutResult, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return object.PutResult{}, err
	}
	f.bodies[key] = data
	return object.PutResult{Key: key, ETag: "etag", Size: int64(len(data))}, nil
}

func (f *fakeObjectStore) GetStream(_ context.Context, key string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.bodies[key]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeObjectStore) KeyFor(name string) string   { return "uploads/test/" + name }
func (f *fakeObjectStore) Probe(context.Context) error { return nil }

// flushFailingStore wraps a real document.Store but fails every
// BulkInsertUnordered call, simulating a database outage mid-file.
type flushFailingStore struct {
	document.Store
}

func (f *flushFailingStore) BulkInsertUnordered(ctx context.Context, collection string, docs []map[string]any) (int, error) {
	return 0, errors.New("simulated insert failure")
}

type harness struct {
	store   *doctest.Store
	catalog *catalog.Catalog
	queue   *jobqueue.Queue
	objects *fakeObjectStore
	worker  *Worker
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := doctest.New()
	cat := catalog.New(store)
	queue := jobqueue.New(store)
	objects := newFakeObjectStore()

	w := New(queue, cat, objects, store, Config{
		WorkerID:     "worker-1",
		BatchSize:    2,
		LockTimeout:  time.Minute,
		PollInterval: 10 * time.Millisecond,
		MaxAttempts:  3,
		MaxErrorTail: 10,
	})

	return &harness{store: store, catalog: cat, queue: queue, objects: objects, worker: w}
}

func (h *harness) seedFile(t *testing.T, contentType, body string) (fileID string) {
	t.Helper()
	key := h.objects.KeyFor("data")
	_, err := h.objects.PutStream(context.Background(), key, strings.NewReader(body), contentType)
	require.NoError(t, err)

	fileID, err = h.catalog.Create(context.Background(), catalog.File{
		ObjectKey:    key,
		OriginalName: "data",
		ContentType:  contentType,
		Size:         int64(len(body)),
		Status:       catalog.StatusUploaded,
	})
	require.NoError(t, err)
	return fileID
}

func TestWorker_ProcessFileInsertsRecordsAndCompletesJob(t *testing.T) {
	h := newHarness(t)
	fileID := h.seedFile(t, "text/csv", "name,age\nalice,30\nbob,41\ncarol,19\n")

	jobID, err := h.queue.Create(context.Background(), fileID)
	require.NoError(t, err)

	job, err := h.queue.Claim(context.Background(), "worker-1", time.Minute)
	require.NoError(t, err)
	require.Equal(t, jobID, job.ID)

	progress, err := h.worker.processFile(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, 4, progress.LinesProcessed) // header + 3 rows
	require.Equal(t, 3, progress.RecordsInserted)
	require.Equal(t, 0, progress.RecordsFailed)

	inserted, err := h.store.FindOne(context.Background(), "parsed_records",
		document.Filter{}, nil)
	require.NoError(t, err)
	require.NotNil(t, inserted)
}

func TestWorker_ProcessFileIsolatesLineErrorsAndKeepsGoing(t *testing.T) {
	h := newHarness(t)
	fileID := h.seedFile(t, "text/csv", "name,age\nalice,30\nbadrow\ncarol,19\n")

	jobID, err := h.queue.Create(context.Background(), fileID)
	require.NoError(t, err)
	job, err := h.queue.Claim(context.Background(), "worker-1", time.Minute)
	require.NoError(t, err)
	require.Equal(t, jobID, job.ID)

	progress, err := h.worker.processFile(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, 2, progress.RecordsInserted)
	require.Equal(t, 1, progress.RecordsFailed)

	updated, err := h.queue.Get(context.Background(), jobID)
	require.NoError(t, err)
	require.Len(t, updated.ErrorTail, 1)
}

func TestWorker_ProcessFileDegradesOnFlushFailureInsteadOfAborting(t *testing.T) {
	h := newHarness(t)
	fileID := h.seedFile(t, "text/plain", "one\ntwo\nthree\nfour\n")

	jobID, err := h.queue.Create(context.Background(), fileID)
	require.NoError(t, err)
	job, err := h.queue.Claim(context.Background(), "worker-1", time.Minute)
	require.NoError(t, err)

	failingWorker := New(h.queue, h.catalog, h.objects, &flushFailingStore{Store: h.store}, Config{
		WorkerID:     "worker-1",
		BatchSize:    2,
		LockTimeout:  time.Minute,
		PollInterval: 10 * time.Millisecond,
		MaxAttempts:  3,
		MaxErrorTail: 10,
	})

	progress, err := failingWorker.processFile(context.Background(), job)
	require.NoError(t, err) // flush failures degrade the job, they don't abort it
	require.Equal(t, 4, progress.LinesProcessed)
	require.Equal(t, 0, progress.RecordsInserted)
	require.Equal(t, 4, progress.RecordsFailed)
	require.Equal(t, jobID, job.ID)
}

func TestWorker_ProcessFileFailsJobWhenFileMissing(t *testing.T) {
	h := newHarness(t)

	jobID, err := h.queue.Create(context.Background(), "missing-file-id")
	require.NoError(t, err)
	job, err := h.queue.Claim(context.Background(), "worker-1", time.Minute)
	require.NoError(t, err)
	require.Equal(t, jobID, job.ID)

	h.worker.processJob(context.Background(), job)

	updated, err := h.queue.Get(context.Background(), jobID)
	require.NoError(t, err)
	require.Equal(t, jobqueue.StateQueued, updated.State) // first failure requeues, under MaxAttempts
	require.Len(t, updated.ErrorTail, 1)
}

func TestWorker_RunProcessesClaimedJobThenStops(t *testing.T) {
	h := newHarness(t)
	fileID := h.seedFile(t, "text/plain", "one\ntwo\n")

	jobID, err := h.queue.Create(context.Background(), fileID)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	h.worker.Start(ctx)
	defer h.worker.Stop()

	require.Eventually(t, func() bool {
		j, err := h.queue.Get(context.Background(), jobID)
		return err == nil && j.State == jobqueue.StateCompleted
	}, 400*time.Millisecond, 10*time.Millisecond)
}

func TestWorker_StartRunsRecoverySweepWhenStaleThresholdSet(t *testing.T) {
	store := doctest.New()
	cat := catalog.New(store)
	queue := jobqueue.New(store)
	objects := newFakeObjectStore()

	w := New(queue, cat, objects, store, Config{
		WorkerID:       "worker-1",
		BatchSize:      2,
		LockTimeout:    time.Minute,
		PollInterval:   time.Hour, // keep the claim loop from racing the abandoned job
		MaxAttempts:    3,
		MaxErrorTail:   10,
		StaleThreshold: 20 * time.Millisecond,
	})

	jobID, err := queue.Create(context.Background(), "some-file-id")
	require.NoError(t, err)
	claimed, err := queue.Claim(context.Background(), "dead-worker", time.Nanosecond) // lock expires almost immediately
	require.NoError(t, err)
	require.Equal(t, jobID, claimed.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	w.Start(ctx)
	defer w.Stop()

	require.Eventually(t, func() bool {
		j, err := queue.Get(context.Background(), jobID)
		return err == nil && j.State == jobqueue.StateQueued
	}, 250*time.Millisecond, 10*time.Millisecond)
}
