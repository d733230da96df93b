package controllers

import (
	"net/http"

	relaysvc "github.com/Talhamuhammadali/event-driven-mircorservice/internal/services/relay"
	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/session"
)

// SessionsController exposes session inspection endpoints.
type SessionsController struct {
	relay *relaysvc.Service
}

// NewSessionsController creates a new sessions controller.
func NewSessionsController(relay *relaysvc.Service) *SessionsController {
	return &SessionsController{relay: relay}
}

// RegisterRoutes registers session routes with the given mux.
func (c *SessionsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/sessions", c.handleList)
	mux.HandleFunc("/v1/sessions/tail", c.handleTail)
}

// handleList returns every live session log with its delivery progress.
func (c *SessionsController) handleList(w http.ResponseWriter, r *http.Request) {
	infos, err := c.relay.ListSessions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}
	if infos == nil {
		infos = []relaysvc.SessionInfo{}
	}
	writeJSON(w, map[string]any{"sessions": infos})
}

// handleTail streams a session's log as SSE with an optional CEL filter.
//
// Unlike /stream this never starts a job and never emits the timeout error
// frame; it follows the log until its terminal entry or until the caller
// disconnects.
func (c *SessionsController) handleTail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	q := r.URL.Query()
	key, err := session.NewKey(q.Get("feature_id"), q.Get("chat_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid feature_id or chat_id")
		return
	}
	filter, err := relaysvc.NewFilter(q.Get("filter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	if err := c.relay.TailSession(r.Context(), key, filter, sseSink{w: w}); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to tail session")
	}
}
