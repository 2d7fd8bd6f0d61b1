package gateway

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/flemzord/ctxopt/internal/optimizer"
)

// Tracker records optimizer run outcomes for the status endpoints. It is
// safe for concurrent use.
type Tracker struct {
	runs     atomic.Int64
	degraded atomic.Int64

	mu   sync.Mutex
	last *optimizer.Report
}

// Record stores rep as the latest run.
func (t *Tracker) Record(rep *optimizer.Report) {
	if rep == nil {
		return
	}
	t.runs.Add(1)
	if !rep.OK() {
		t.degraded.Add(1)
	}

	t.mu.Lock()
	t.last = rep
	t.mu.Unlock()
}

// Snapshot returns a point-in-time view of the recorded runs.
func (t *Tracker) Snapshot() TrackerSnapshot {
	t.mu.Lock()
	last := t.last
	t.mu.Unlock()

	snap := TrackerSnapshot{
		Runs:       t.runs.Load(),
		Degraded:   t.degraded.Load(),
		LastReport: last,
	}
	if last != nil {
		snap.LastRun = last.Finished
	}
	return snap
}

// TrackerSnapshot is a serializable view of a Tracker.
type TrackerSnapshot struct {
	Runs       int64             `json:"runs"`
	Degraded   int64             `json:"degraded_runs"`
	LastRun    time.Time         `json:"last_run,omitzero"`
	LastReport *optimizer.Report `json:"last_report,omitempty"`
}
