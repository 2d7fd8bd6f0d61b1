package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/flemzord/ctxopt/internal/cron"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime    int64           `json:"uptime_seconds"`
	StorePath string          `json:"store_path,omitempty"`
	NextRun   time.Time       `json:"next_run,omitzero"`
	Runs      TrackerSnapshot `json:"runs"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Uptime:    int64(time.Since(g.startedAt) / time.Second),
			StorePath: g.storePath,
			Runs:      g.tracker.Snapshot(),
		}
		if g.nextRun != nil {
			resp.NextRun = g.nextRun()
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// handleOptimize runs the optimizer synchronously and returns its report.
func (g *Gateway) handleOptimize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := g.trigger(r.Context())
		switch {
		case errors.Is(err, cron.ErrJobBusy):
			http.Error(w, "optimization already running", http.StatusConflict)
			return
		case errors.Is(err, cron.ErrStopped):
			http.Error(w, "scheduler is restarting", http.StatusServiceUnavailable)
			return
		case err != nil:
			g.logger.Error("gateway: optimize failed", "error", err)
			http.Error(w, "optimization failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(g.tracker.Snapshot().LastReport)
	}
}
