package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/linegrid/linegrid/pkg/catalog"
	"github.com/linegrid/linegrid/pkg/jobqueue"
	"github.com/linegrid/linegrid/pkg/store/document/doctest"
)

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestProcess_EnqueuesJobForKnownFile(t *testing.T) {
	store := doctest.New()
	cat := catalog.New(store)
	queue := jobqueue.New(store)

	fileID, err := cat.Create(context.Background(), catalog.File{
		ObjectKey:    "uploads/2026-01-01/x-data.csv",
		OriginalName: "data.csv",
		ContentType:  "text/csv",
		Size:         10,
	})
	if err != nil {
		t.Fatalf("seed file: %v", err)
	}

	handler := NewProcessHandler(cat, queue)
	req := httptest.NewRequest(http.MethodPost, "/process/"+fileID, nil)
	req = withURLParam(req, "file_id", fileID)
	w := httptest.NewRecorder()

	handler.Process(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp processResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.FileID != fileID {
		t.Errorf("expected file_id %s, got %s", fileID, resp.FileID)
	}
	if resp.State != "queued" {
		t.Errorf("expected state queued, got %s", resp.State)
	}
}

func TestProcess_RejectsMalformedID(t *testing.T) {
	store := doctest.New()
	cat := catalog.New(store)
	queue := jobqueue.New(store)
	handler := NewProcessHandler(cat, queue)

	req := httptest.NewRequest(http.MethodPost, "/process/not-an-id", nil)
	req = withURLParam(req, "file_id", "not-an-id")
	w := httptest.NewRecorder()

	handler.Process(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "Invalid fileId format" {
		t.Errorf("expected error %q, got %v", "Invalid fileId format", body["error"])
	}
	if _, hasMessage := body["message"]; hasMessage {
		t.Errorf("expected no message field, got %v", body["message"])
	}
}

func TestProcess_UnknownFileReturns404(t *testing.T) {
	store := doctest.New()
	cat := catalog.New(store)
	queue := jobqueue.New(store)
	handler := NewProcessHandler(cat, queue)

	missingID := "00000000-0000-0000-0000-000000000000"
	req := httptest.NewRequest(http.MethodPost, "/process/"+missingID, nil)
	req = withURLParam(req, "file_id", missingID)
	w := httptest.NewRecorder()

	handler.Process(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
