package controllers

import (
	"net/http"

	dispatchsvc "github.com/Talhamuhammadali/event-driven-mircorservice/internal/services/dispatch"
)

// JobsController exposes the generation job queue.
type JobsController struct {
	dispatch *dispatchsvc.Service
}

// NewJobsController creates a new jobs controller.
func NewJobsController(dispatch *dispatchsvc.Service) *JobsController {
	return &JobsController{dispatch: dispatch}
}

// RegisterRoutes registers job routes with the given mux.
func (c *JobsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/jobs/stats", c.handleStats)
	mux.HandleFunc("/v1/jobs/recent", c.handleRecent)
}

func (c *JobsController) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := c.dispatch.QueueStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read queue stats")
		return
	}
	writeJSON(w, queueStatsJSON{
		LastSeq:      st.LastSeq,
		Available:    st.Available,
		Leased:       st.Leased,
		DeadLettered: st.DeadLettered,
	})
}

func (c *JobsController) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"))
	if limit == 0 {
		limit = 20
	}
	entries, err := c.dispatch.RecentResults(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list recent jobs")
		return
	}
	jobs := make([]jobJSON, 0, len(entries))
	for _, e := range entries {
		jobs = append(jobs, jobJSON{
			Seq:           e.Seq,
			ConsumerID:    e.ConsumerID,
			EnqueuedAtMs:  e.EnqueuedAtMs,
			DequeuedAtMs:  e.DequeuedAtMs,
			CompletedAtMs: e.CompletedAtMs,
			DurationMs:    e.Duration,
			Attempts:      e.DeliveryCount,
			Result:        e.Result,
			Error:         e.Error,
			Headers:       e.Headers,
		})
	}
	writeJSON(w, map[string]any{"jobs": jobs})
}
