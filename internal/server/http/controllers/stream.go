package controllers

import (
	"errors"
	"net/http"

	dispatchsvc "github.com/Talhamuhammadali/event-driven-mircorservice/internal/services/dispatch"
	relaysvc "github.com/Talhamuhammadali/event-driven-mircorservice/internal/services/relay"
	"github.com/Talhamuhammadali/event-driven-mircorservice/internal/session"
)

// StreamController serves the client-facing push stream.
type StreamController struct {
	dispatch *dispatchsvc.Service
	relay    *relaysvc.Service
}

// NewStreamController creates a new stream controller.
func NewStreamController(dispatch *dispatchsvc.Service, relay *relaysvc.Service) *StreamController {
	return &StreamController{dispatch: dispatch, relay: relay}
}

// RegisterRoutes registers the stream route with the given mux.
func (c *StreamController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/stream", c.handleStream)
}

// handleStream admits the session's generation job if none is running, then
// relays the session log as SSE until it ends.
//
// Every caller gets the full sequence from the first message: repeat and
// late requests join the same log rather than starting a second run. The
// response is a series of `data: <payload>` frames where the payload is a
// JSON message, an error record, or the [DONE] sentinel, verbatim.
func (c *StreamController) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	q := r.URL.Query()
	key, err := session.NewKey(q.Get("feature_id"), q.Get("chat_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid feature_id or chat_id")
		return
	}
	if _, err := c.dispatch.EnsureStarted(r.Context(), key); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to start stream job")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// Proxies must pass frames through as they are written.
	w.Header().Set("X-Accel-Buffering", "no")

	err = c.relay.Stream(r.Context(), key, sseSink{w: w})
	if err != nil && !errors.Is(err, relaysvc.ErrTimeout) {
		writeError(w, http.StatusInternalServerError, "Failed to stream")
	}
}
