package controllers

import (
	"net/http"

	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/runtime"
)

// GeneralController handles service identity and health endpoints.
//
// These routes answer deployment probes and humans poking the service;
// none of them touch session state.
type GeneralController struct {
	rt *runtime.Runtime
}

func NewGeneralController(rt *runtime.Runtime) *GeneralController {
	return &GeneralController{rt: rt}
}

// RegisterRoutes mounts the identity and health routes.
func (c *GeneralController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", c.handleInfo)
	mux.HandleFunc("/info", c.handleInfo)
	mux.HandleFunc("/health", c.handleServiceHealth)
	// Deployed probes still call the misspelled route.
	mux.HandleFunc("/heath", c.handleServiceHealth)
	mux.HandleFunc("/v1/healthz", c.handleStorageHealth)
}

// handleInfo returns the service descriptor.
//
// The root pattern also catches every unregistered path, so anything that is
// not exactly "/" or "/info" is a 404.
func (c *GeneralController) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/info" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, map[string]string{"info": "Test API for Event driven arch"})
}

// handleServiceHealth reports this instance as healthy along with the
// feature it serves.
func (c *GeneralController) handleServiceHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status":     "healthy",
		"feature_id": c.rt.Config().FeatureID,
	})
}

// handleStorageHealth probes the storage layer: 200 when the store
// responds, 503 otherwise.
func (c *GeneralController) handleStorageHealth(w http.ResponseWriter, r *http.Request) {
	if err := c.rt.CheckHealth(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_serving")
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}
