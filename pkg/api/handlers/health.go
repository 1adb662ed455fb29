package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/linegrid/linegrid/pkg/api"
	"github.com/linegrid/linegrid/pkg/store/document"
	"github.com/linegrid/linegrid/pkg/store/object"
)

// healthCheckTimeout bounds how long a single adapter probe may take
// before the healthz endpoint gives up on it.
const healthCheckTimeout = 5 * time.Second

// HealthHandler reports the reachability of the object store and document
// store adapters.
type HealthHandler struct {
	objectStore object.Store
	docStore    document.Store
	startTime   time.Time
}

// NewHealthHandler builds a HealthHandler.
func NewHealthHandler(objectStore object.Store, docStore document.Store) *HealthHandler {
	return &HealthHandler{objectStore: objectStore, docStore: docStore, startTime: time.Now()}
}

type serviceStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type healthResponse struct {
	Status   string                   `json:"status"`
	Services map[string]serviceStatus `json:"services"`
}

// Healthz handles GET /healthz: 200 if both adapters are reachable, 503
// with a per-service breakdown otherwise.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	services := map[string]serviceStatus{}
	healthy := true

	if err := h.objectStore.Probe(ctx); err != nil {
		services["object_store"] = serviceStatus{Status: "unhealthy", Error: err.Error()}
		healthy = false
	} else {
		services["object_store"] = serviceStatus{Status: "healthy"}
	}

	if err := h.docStore.Ping(ctx); err != nil {
		services["document_store"] = serviceStatus{Status: "unhealthy", Error: err.Error()}
		healthy = false
	} else {
		services["document_store"] = serviceStatus{Status: "healthy"}
	}

	if !healthy {
		status := "unhealthy"
		for _, s := range services {
			if s.Status != "unhealthy" {
				status = "degraded"
				break
			}
		}
		api.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: status, Services: services})
		return
	}

	api.WriteJSON(w, http.StatusOK, healthResponse{Status: "healthy", Services: services})
}

type bannerResponse struct {
	Service string `json:"service"`
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
}

// Banner handles GET /: a minimal service banner.
func (h *HealthHandler) Banner(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, bannerResponse{
		Service: "linegrid",
		Status:  "ok",
		Uptime:  time.Since(h.startTime).Round(time.Second).String(),
	})
}
