// Package metrics exposes scan counters for Prometheus scraping.
// Metrics include counters for dispatched requests, findings and
// inconclusive attempts, plus a histogram for response time distribution.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the scan metrics behind a private registry so repeated
// sessions in one process never collide with the default registry.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal     *prometheus.CounterVec
	findingsTotal     *prometheus.CounterVec
	inconclusiveTotal *prometheus.CounterVec

	scanDurationSeconds prometheus.Gauge

	responseTimeSeconds *prometheus.HistogramVec
}

// NewCollector creates and registers the scan metrics.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "injectest_requests_total",
				Help: "Total number of injection requests dispatched",
			},
			[]string{"generator", "point"},
		),
		findingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "injectest_findings_total",
				Help: "Total number of confirmed findings",
			},
			[]string{"detector", "severity"},
		),
		inconclusiveTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "injectest_inconclusive_total",
				Help: "Total number of attempts with no verdict",
			},
			[]string{"reason"},
		),
		scanDurationSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "injectest_scan_duration_seconds",
				Help: "Wall-clock duration of the last completed scan",
			},
		),
		responseTimeSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "injectest_response_time_seconds",
				Help:    "Target response time distribution",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"generator"},
		),
	}

	registry.MustRegister(
		c.requestsTotal,
		c.findingsTotal,
		c.inconclusiveTotal,
		c.scanDurationSeconds,
		c.responseTimeSeconds,
	)
	return c
}

// ObserveDispatch records one dispatched request and its round-trip time.
func (c *Collector) ObserveDispatch(generator, point string, elapsed time.Duration) {
	c.requestsTotal.WithLabelValues(generator, point).Inc()
	c.responseTimeSeconds.WithLabelValues(generator).Observe(elapsed.Seconds())
}

// IncFinding records one confirmed finding.
func (c *Collector) IncFinding(detector, severity string) {
	c.findingsTotal.WithLabelValues(detector, severity).Inc()
}

// IncInconclusive records one attempt that produced no verdict.
func (c *Collector) IncInconclusive(reason string) {
	c.inconclusiveTotal.WithLabelValues(reason).Inc()
}

// SetScanDuration records the wall-clock duration of a finished scan.
func (c *Collector) SetScanDuration(d time.Duration) {
	c.scanDurationSeconds.Set(d.Seconds())
}

// Handler returns an HTTP handler serving the collector's registry, for
// callers that want to expose a /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the private registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
