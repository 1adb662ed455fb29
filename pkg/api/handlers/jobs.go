package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/linegrid/linegrid/pkg/api"
	"github.com/linegrid/linegrid/pkg/jobqueue"
)

// JobsHandler handles GET /jobs/{job_id}.
type JobsHandler struct {
	queue *jobqueue.Queue
}

// NewJobsHandler builds a JobsHandler.
func NewJobsHandler(queue *jobqueue.Queue) *JobsHandler {
	return &JobsHandler{queue: queue}
}

type jobProgress struct {
	LinesProcessed  int `json:"lines_processed"`
	RecordsInserted int `json:"records_inserted"`
}

type jobResult struct {
	Success bool `json:"success"`
}

type jobResponse struct {
	JobID      string      `json:"job_id"`
	FileID     string      `json:"file_id"`
	State      string      `json:"state"`
	Attempts   int         `json:"attempts"`
	QueuedAt   time.Time   `json:"queued_at"`
	StartedAt  *time.Time  `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at"`
	Progress   jobProgress `json:"progress"`
	ErrorCount int         `json:"error_count"`
	Result     *jobResult  `json:"result"`
}

// Get returns the current state of a job, for clients polling until it
// reaches a terminal state.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if !api.ValidID(jobID) {
		api.BadRequest(w, "Invalid jobId format")
		return
	}

	job, err := h.queue.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobqueue.ErrNotFound) {
			api.NotFound(w, "job not found")
			return
		}
		api.InternalServerError(w, "failed to look up job")
		return
	}

	resp := jobResponse{
		JobID:      job.ID,
		FileID:     job.FileID,
		State:      string(job.State),
		Attempts:   job.Attempts,
		QueuedAt:   job.QueuedAt,
		StartedAt:  job.StartedAt,
		FinishedAt: job.CompletedAt,
		Progress: jobProgress{
			LinesProcessed:  job.Progress.LinesProcessed,
			RecordsInserted: job.Progress.RecordsInserted,
		},
		ErrorCount: job.Progress.RecordsFailed,
	}
	if job.State == jobqueue.StateCompleted || job.State == jobqueue.StateFailed {
		resp.Result = &jobResult{Success: job.State == jobqueue.StateCompleted}
	}

	api.WriteJSON(w, http.StatusOK, resp)
}
