package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/linegrid/linegrid/pkg/store/document/doctest"
	"github.com/linegrid/linegrid/pkg/store/object"
)

type stubObjectStore struct {
	probeErr error
}

func (s *stubObjectStore) PutStream(context.Context, string, io.Reader, string) (object.PutResult, error) {
	return object.PutResult{}, nil
}
func (s *stubObjectStore) GetStream(context.Context, string) (io.ReadCloser, error) { return nil, nil }
func (s *stubObjectStore) KeyFor(name string) string                                { return name }
func (s *stubObjectStore) Probe(context.Context) error                              { return s.probeErr }

func TestHealthz_ReturnsOKWhenBothAdaptersHealthy(t *testing.T) {
	handler := NewHealthHandler(&stubObjectStore{}, doctest.New())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	handler.Healthz(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestHealthz_ReturnsDegradedWhenOneAdapterFails(t *testing.T) {
	handler := NewHealthHandler(&stubObjectStore{probeErr: errors.New("unreachable")}, doctest.New())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	handler.Healthz(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}

	var resp healthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("expected degraded, got %s", resp.Status)
	}
}

func TestBanner_ReturnsServiceInfo(t *testing.T) {
	handler := NewHealthHandler(&stubObjectStore{}, doctest.New())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	handler.Banner(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp bannerResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Service != "linegrid" {
		t.Errorf("expected service linegrid, got %s", resp.Service)
	}
}
