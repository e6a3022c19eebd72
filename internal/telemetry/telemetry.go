// Package telemetry exposes Prometheus metrics for simulation runs.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the Prometheus metrics the runner reports.
type Registry struct {
	*prometheus.Registry

	runsTotal    *prometheus.CounterVec
	runDuration  prometheus.Histogram
	sessions     prometheus.Counter
	bars         prometheus.Counter
	transactions *prometheus.CounterVec
	progress     prometheus.Gauge
}

// NewRegistry creates a registry with all run metrics registered, plus the
// Go runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zipline_runs_total",
				Help: "Total number of simulation runs by final status",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "zipline_run_duration_seconds",
				Help:    "Simulation run duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
			},
		),
		sessions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "zipline_sessions_processed_total",
				Help: "Total number of trading sessions closed",
			},
		),
		bars: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "zipline_bars_processed_total",
				Help: "Total number of bar closes processed",
			},
		),
		transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zipline_transactions_total",
				Help: "Total number of transactions applied, by strategy",
			},
			[]string{"strategy"},
		),
		progress: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "zipline_run_progress",
				Help: "Progress of the current simulation run, 0 through 1",
			},
		),
	}

	reg.MustRegister(
		r.runsTotal,
		r.runDuration,
		r.sessions,
		r.bars,
		r.transactions,
		r.progress,
	)
	return r
}

// RecordRun records a finished run with its final status and duration.
func (r *Registry) RecordRun(status string, seconds float64) {
	r.runsTotal.WithLabelValues(status).Inc()
	r.runDuration.Observe(seconds)
}

// RecordSession counts one closed trading session.
func (r *Registry) RecordSession() {
	r.sessions.Inc()
}

// RecordBar counts one processed bar close.
func (r *Registry) RecordBar() {
	r.bars.Inc()
}

// RecordTransactions counts transactions applied for a strategy.
func (r *Registry) RecordTransactions(strategy string, n int) {
	r.transactions.WithLabelValues(strategy).Add(float64(n))
}

// SetProgress publishes the current run's progress.
func (r *Registry) SetProgress(p float64) {
	r.progress.Set(p)
}

// Handler serves the registry in Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{})
}
