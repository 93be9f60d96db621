// Package metrics exposes Prometheus counters for the processing service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's instruments on a private registry so tests can
// create isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	runsStarted   prometheus.Counter
	runsCompleted prometheus.Counter
	runsFailed    prometheus.Counter
	runDuration   prometheus.Histogram
	httpRequests  *prometheus.CounterVec
	queueDepth    prometheus.Gauge
}

// New registers the instruments on a fresh registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.runsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rallymetrics_runs_started_total",
		Help: "Processing runs started.",
	})
	m.runsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rallymetrics_runs_completed_total",
		Help: "Processing runs completed successfully.",
	})
	m.runsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rallymetrics_runs_failed_total",
		Help: "Processing runs that ended in a terminal failure.",
	})
	m.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rallymetrics_run_duration_seconds",
		Help:    "Wall time of processing runs.",
		Buckets: prometheus.DefBuckets,
	})
	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rallymetrics_http_requests_total",
		Help: "HTTP requests by method and status.",
	}, []string{"method", "status"})
	m.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rallymetrics_queue_depth",
		Help: "Jobs waiting in the processing queue.",
	})

	m.registry.MustRegister(
		m.runsStarted, m.runsCompleted, m.runsFailed,
		m.runDuration, m.httpRequests, m.queueDepth,
	)
	return m
}

func (m *Metrics) RunStarted()                  { m.runsStarted.Inc() }
func (m *Metrics) RunCompleted(seconds float64) { m.runsCompleted.Inc(); m.runDuration.Observe(seconds) }
func (m *Metrics) RunFailed()                   { m.runsFailed.Inc() }
func (m *Metrics) SetQueueDepth(n int)          { m.queueDepth.Set(float64(n)) }

func (m *Metrics) IncHTTP(method, status string) {
	m.httpRequests.WithLabelValues(method, status).Inc()
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
