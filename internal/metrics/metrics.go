// Package metrics holds the Prometheus counters maude exports.
//
// Metrics live on a private registry so tests and multiple runs in one
// process never collide. Ingestion counters are usually written once per
// run to a node_exporter textfile; `maude serve` exposes the registry over
// HTTP instead.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "maude"

// Metrics is a set of maude counters bound to one registry.
// It implements ingest.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	files        *prometheus.CounterVec
	rowsInserted *prometheus.CounterVec
	rowsDropped  *prometheus.CounterVec

	queries        *prometheus.CounterVec
	queryDuration  prometheus.Histogram
	recordsMatched prometheus.Counter
}

// New creates the counters on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		files: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "files_total",
			Help:      "Source files seen by ingestion, by record kind and outcome.",
		}, []string{"kind", "status"}),
		rowsInserted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "rows_inserted_total",
			Help:      "Rows newly written to the archive.",
		}, []string{"kind"}),
		rowsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "rows_dropped_total",
			Help:      "Malformed source records skipped during parsing.",
		}, []string{"kind"}),
		queries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "requests_total",
			Help:      "Term-match queries, by table and outcome.",
		}, []string{"table", "outcome"}),
		queryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Term-match query latency.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}),
		recordsMatched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "records_returned_total",
			Help:      "Records returned by term-match queries.",
		}),
	}
}

// ObserveFile records one finished source file.
func (m *Metrics) ObserveFile(kind, status string, rowsInserted, rowsDropped int) {
	m.files.WithLabelValues(kind, status).Inc()
	if rowsInserted > 0 {
		m.rowsInserted.WithLabelValues(kind).Add(float64(rowsInserted))
	}
	if rowsDropped > 0 {
		m.rowsDropped.WithLabelValues(kind).Add(float64(rowsDropped))
	}
}

// ObserveQuery records one query. table is "" when every table was searched.
func (m *Metrics) ObserveQuery(table string, records int, elapsed time.Duration, err error) {
	if table == "" {
		table = "all"
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.queries.WithLabelValues(table, outcome).Inc()
	m.queryDuration.Observe(elapsed.Seconds())
	m.recordsMatched.Add(float64(records))
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile atomically writes the registry to path for the
// node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
