// Package api wires the HTTP surface: upload ingestion, processing
// kickoff, job polling, and health checks, behind a chi router.
package api

import (
	"encoding/json"
	"net/http"
)

// errorBody is the shape every 4xx/5xx response uses: a short
// machine-matchable error code plus a human-readable message.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WriteJSON writes data as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes the {error, message} shape used for every validation
// and infrastructure failure. errText is the short, machine-matchable
// summary callers compare against; message is an optional elaboration and
// is omitted entirely when empty.
func WriteError(w http.ResponseWriter, status int, errText, message string) {
	WriteJSON(w, status, errorBody{Error: errText, Message: message})
}

// BadRequest writes a 400 whose error field is errText itself — callers
// pass the exact, user-facing reason a request was rejected, not a generic
// status label.
func BadRequest(w http.ResponseWriter, errText string) {
	WriteError(w, http.StatusBadRequest, errText, "")
}

// NotFound writes a 404 whose error field is errText itself.
func NotFound(w http.ResponseWriter, errText string) {
	WriteError(w, http.StatusNotFound, errText, "")
}

// InternalServerError writes a 500 whose error field is errText itself, for
// infrastructure failures that have no more specific envelope.
func InternalServerError(w http.ResponseWriter, errText string) {
	WriteError(w, http.StatusInternalServerError, errText, "")
}

// UploadFailed writes the 500 envelope specific to a failed upload: a fixed
// "Upload failed" error with message elaborating on the cause (file too
// large, storage error, and so on).
func UploadFailed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "Upload failed", message)
}
