// Package metrics exposes Prometheus instrumentation for the rebalancing
// pipeline: run counts, trades recorded, and skipped events by reason.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Skip reasons used as label values on EventsSkipped.
const (
	SkipNoData     = "no_data"
	SkipCapBlocked = "cap_blocked"
	SkipError      = "error"
)

// Registry holds all Prometheus metrics for the rebalancing pipeline.
type Registry struct {
	registry *prometheus.Registry

	// RebalanceRuns counts completed scheduler runs.
	RebalanceRuns prometheus.Counter

	// RebalanceEvents counts (portfolio, date) events by outcome.
	RebalanceEvents *prometheus.CounterVec

	// TradesRecorded counts ledger entries by side.
	TradesRecorded *prometheus.CounterVec

	// EventsSkipped counts skipped (portfolio, date) events by reason.
	EventsSkipped *prometheus.CounterVec

	// LastRunTimestamp records the wall-clock end of the last run.
	LastRunTimestamp prometheus.Gauge
}

// NewRegistry creates a registry with all pipeline metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,

		RebalanceRuns: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "portrun_rebalance_runs_total",
				Help: "Total number of rebalance runs completed",
			},
		),

		RebalanceEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portrun_rebalance_events_total",
				Help: "Total number of per-portfolio rebalance events by outcome",
			},
			[]string{"outcome"},
		),

		TradesRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portrun_trades_recorded_total",
				Help: "Total number of trades appended to the ledger by side",
			},
			[]string{"side"},
		),

		EventsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portrun_events_skipped_total",
				Help: "Total number of skipped rebalance events by reason",
			},
			[]string{"reason"},
		),

		LastRunTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "portrun_last_run_timestamp_seconds",
				Help: "Unix timestamp of the last completed rebalance run",
			},
		),
	}

	reg.MustRegister(
		r.RebalanceRuns,
		r.RebalanceEvents,
		r.TradesRecorded,
		r.EventsSkipped,
		r.LastRunTimestamp,
	)
	return r
}

// Handler returns the scrape endpoint for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
