package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the lineup service.
type Metrics struct {
	registry            *prometheus.Registry
	requestsTotal       prometheus.Counter
	errorsTotal         prometheus.Counter
	runsTotal           prometheus.Counter
	runFailuresTotal    prometheus.Counter
	newAssignmentsTotal prometheus.Counter
	refreshRequests     prometheus.Counter
	channelsPublished   prometheus.Gauge
}

// New creates and registers Prometheus metrics for the lineup service.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lineup_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lineup_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	runsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lineup_runs_total",
		Help: "Total number of scrape-and-reconcile runs started",
	})
	runFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lineup_run_failures_total",
		Help: "Total number of runs that aborted with an error",
	})
	newAssignmentsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lineup_new_assignments_total",
		Help: "Total number of channel numbers newly assigned to stream paths",
	})
	refreshRequests := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lineup_refresh_requests_total",
		Help: "Total number of manual refresh requests received",
	})
	channelsPublished := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lineup_channels_published",
		Help: "Number of channels in the most recently published lineup",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		runsTotal,
		runFailuresTotal,
		newAssignmentsTotal,
		refreshRequests,
		channelsPublished,
	)

	return &Metrics{
		registry:            registry,
		requestsTotal:       requestsTotal,
		errorsTotal:         errorsTotal,
		runsTotal:           runsTotal,
		runFailuresTotal:    runFailuresTotal,
		newAssignmentsTotal: newAssignmentsTotal,
		refreshRequests:     refreshRequests,
		channelsPublished:   channelsPublished,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the HTTP errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncRuns increments the runs-started counter.
func (m *Metrics) IncRuns() {
	m.runsTotal.Inc()
}

// IncRunFailures increments the failed-runs counter.
func (m *Metrics) IncRunFailures() {
	m.runFailuresTotal.Inc()
}

// IncNewAssignments increments the new-assignments counter.
func (m *Metrics) IncNewAssignments() {
	m.newAssignmentsTotal.Inc()
}

// IncRefreshRequests increments the manual-refresh counter.
func (m *Metrics) IncRefreshRequests() {
	m.refreshRequests.Inc()
}

// SetChannelsPublished sets the published-channels gauge.
func (m *Metrics) SetChannelsPublished(n int) {
	m.channelsPublished.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
