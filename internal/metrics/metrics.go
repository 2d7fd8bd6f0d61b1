// Package metrics exposes optimizer outcomes as Prometheus instruments,
// served over HTTP by the schedule daemon or written to a node_exporter
// textfile after one-shot runs.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/flemzord/ctxopt/internal/optimizer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by ctxopt. Each instance
// owns its registry so tests and the CLI never collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	Runs               *prometheus.CounterVec
	RowsRemoved        *prometheus.CounterVec
	SummariesTruncated prometheus.Counter
	TempFilesRemoved   prometheus.Counter
	StoreRows          *prometheus.GaugeVec
	StoreBytes         prometheus.Gauge
	LastRun            prometheus.Gauge
	RunDuration        prometheus.Histogram
}

// New registers the instruments under namespace.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Optimization runs by outcome.",
		}, []string{"result"}),
		RowsRemoved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_removed_total",
			Help:      "Rows pruned from the context store by table and reason.",
		}, []string{"table", "reason"}),
		SummariesTruncated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_truncated_total",
			Help:      "Conversation summaries shortened to the configured cap.",
		}),
		TempFilesRemoved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "temp_files_removed_total",
			Help:      "Ephemeral session files deleted from the project root.",
		}),
		StoreRows: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_rows",
			Help:      "Rows currently held in the context store by table.",
		}, []string{"table"}),
		StoreBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_size_bytes",
			Help:      "On-disk size of the context store.",
		}),
		LastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last optimization finished.",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full optimization run.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}),
	}
}

// ObserveStats updates the store gauges.
func (m *Metrics) ObserveStats(s optimizer.Stats) {
	m.StoreRows.WithLabelValues("conversation_context").Set(float64(s.Conversations))
	m.StoreRows.WithLabelValues("code_context").Set(float64(s.CodeContexts))
	m.StoreBytes.Set(float64(s.SizeBytes))
}

// ObserveReport records a finished run.
func (m *Metrics) ObserveReport(r *optimizer.Report) {
	result := "ok"
	if !r.OK() {
		result = "degraded"
	}
	m.Runs.WithLabelValues(result).Inc()

	m.RowsRemoved.WithLabelValues("conversation_context", "expired").Add(float64(r.Conversations.RemovedExpired))
	m.RowsRemoved.WithLabelValues("conversation_context", "overflow").Add(float64(r.Conversations.RemovedOverflow))
	m.RowsRemoved.WithLabelValues("code_context", "missing_file").Add(float64(r.CodeContexts.RemovedMissing))
	m.RowsRemoved.WithLabelValues("code_context", "expired").Add(float64(r.CodeContexts.RemovedExpired))
	m.RowsRemoved.WithLabelValues("code_context", "overflow").Add(float64(r.CodeContexts.RemovedOverflow))
	m.SummariesTruncated.Add(float64(r.Conversations.Truncated))
	m.TempFilesRemoved.Add(float64(len(r.TempFiles.Removed)))

	m.ObserveStats(r.After)
	m.LastRun.Set(float64(r.Finished.Unix()))
	m.RunDuration.Observe(r.Duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes the current values to path atomically, for the
// node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("metrics: write textfile %s: %w", path, err)
	}
	return nil
}
