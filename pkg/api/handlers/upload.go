package handlers

import (
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/linegrid/linegrid/pkg/api"
	"github.com/linegrid/linegrid/pkg/ingest"
)

// UploadHandler handles POST /upload.
type UploadHandler struct {
	pipeline *ingest.Pipeline
}

// NewUploadHandler builds an UploadHandler.
func NewUploadHandler(pipeline *ingest.Pipeline) *UploadHandler {
	return &UploadHandler{pipeline: pipeline}
}

type uploadResponse struct {
	FileID   string            `json:"file_id"`
	Key      string            `json:"key"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata"`
}

// Upload streams the single "file" part of a multipart/form-data request
// straight into the object store via the ingest pipeline, never buffering
// the whole body in memory or on disk the way r.ParseMultipartForm would.
//
// Because the pipeline's Ingest call is synchronous end to end (stream the
// part, record the catalog entry, return), there's no race between "upload
// finished" and "multipart reader closed" the way there would be in an
// event-loop runtime where those are two independent callbacks — exactly-once
// response emission is simply the function returning once, which net/http
// already guarantees.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		api.BadRequest(w, "Content-Type must be multipart/form-data")
		return
	}

	mr, err := r.MultipartReader()
	if err != nil {
		api.BadRequest(w, "invalid multipart body")
		return
	}

	var part *multipart.Part
	for {
		p, err := mr.NextPart()
		if err != nil {
			break
		}
		if p.FormName() == "file" {
			part = p
			break
		}
		_ = p.Close()
	}
	if part == nil {
		api.BadRequest(w, "no file part present")
		return
	}
	defer part.Close()

	contentType := part.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	result, err := h.pipeline.Ingest(r.Context(), part.FileName(), contentType, part)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrUnsupportedContentType):
			api.BadRequest(w, "disallowed file type: "+contentType)
		case errors.Is(err, ingest.ErrFileTooLarge):
			api.UploadFailed(w, fmt.Sprintf("File size exceeds maximum allowed size of %s", h.pipeline.MaxFileSize()))
		default:
			api.UploadFailed(w, "")
		}
		return
	}

	api.WriteJSON(w, http.StatusOK, uploadResponse{
		FileID:  result.FileID,
		Key:     result.ObjectKey,
		Message: "uploaded",
		Metadata: map[string]string{
			"original_name": part.FileName(),
			"content_type":  result.ContentType,
		},
	})
}
