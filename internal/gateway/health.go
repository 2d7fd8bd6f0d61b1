package gateway

import (
	"encoding/json"
	"net/http"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status string `json:"status"` // "ok" or "degraded"
	Runs   int64  `json:"runs"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 200 unless the most recent run recorded step errors.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap := g.tracker.Snapshot()
		resp := HealthResponse{
			Status: "ok",
			Runs:   snap.Runs,
		}
		if snap.LastReport != nil && !snap.LastReport.OK() {
			resp.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == "degraded" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
