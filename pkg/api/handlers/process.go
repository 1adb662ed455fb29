package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/linegrid/linegrid/pkg/api"
	"github.com/linegrid/linegrid/pkg/catalog"
	"github.com/linegrid/linegrid/pkg/jobqueue"
)

// ProcessHandler handles POST /process/{file_id}.
type ProcessHandler struct {
	catalog *catalog.Catalog
	queue   *jobqueue.Queue
}

// NewProcessHandler builds a ProcessHandler.
func NewProcessHandler(cat *catalog.Catalog, queue *jobqueue.Queue) *ProcessHandler {
	return &ProcessHandler{catalog: cat, queue: queue}
}

type processResponse struct {
	JobID    string    `json:"job_id"`
	FileID   string    `json:"file_id"`
	State    string    `json:"state"`
	QueuedAt time.Time `json:"queued_at"`
	Message  string    `json:"message"`
}

// Process enqueues a job for an already-uploaded file.
func (h *ProcessHandler) Process(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "file_id")
	if !api.ValidID(fileID) {
		api.BadRequest(w, "Invalid fileId format")
		return
	}

	file, err := h.catalog.Get(r.Context(), fileID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			api.NotFound(w, "file not found")
			return
		}
		api.InternalServerError(w, "failed to look up file")
		return
	}

	jobID, err := h.queue.Create(r.Context(), file.ID)
	if err != nil {
		api.InternalServerError(w, "failed to enqueue job")
		return
	}

	job, err := h.queue.Get(r.Context(), jobID)
	if err != nil {
		api.InternalServerError(w, "failed to read back enqueued job")
		return
	}

	api.WriteJSON(w, http.StatusCreated, processResponse{
		JobID:    job.ID,
		FileID:   job.FileID,
		State:    string(job.State),
		QueuedAt: job.QueuedAt,
		Message:  "queued",
	})
}
