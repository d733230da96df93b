package controllers

import (
	"net/http"

	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/runtime"
	dispatchsvc "github.com/Talhamuhammadali/event-driven-mircorservice/internal/services/dispatch"
	relaysvc "github.com/Talhamuhammadali/event-driven-mircorservice/internal/services/relay"
)

// ControllerRegistry builds the full controller set and mounts every route
// in one call, so the server wires exactly one thing.
type ControllerRegistry struct {
	general  *GeneralController
	stream   *StreamController
	sessions *SessionsController
	jobs     *JobsController
}

func NewControllerRegistry(rt *runtime.Runtime, dispatch *dispatchsvc.Service, relay *relaysvc.Service) *ControllerRegistry {
	return &ControllerRegistry{
		general:  NewGeneralController(rt),
		stream:   NewStreamController(dispatch, relay),
		sessions: NewSessionsController(relay),
		jobs:     NewJobsController(dispatch),
	}
}

// RegisterAllRoutes mounts the stream endpoint, identity and health
// probes, and the session and job inspection routes.
func (r *ControllerRegistry) RegisterAllRoutes(mux *http.ServeMux) {
	r.general.RegisterRoutes(mux)
	r.stream.RegisterRoutes(mux)
	r.sessions.RegisterRoutes(mux)
	r.jobs.RegisterRoutes(mux)
}
