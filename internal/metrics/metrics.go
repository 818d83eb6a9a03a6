// Package metrics exposes Prometheus metrics for acquisitions, background
// writes and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/madankumar045/airvitaweb/internal/airquality"
)

// Metrics holds every collector, registered on its own registry.
type Metrics struct {
	reg *prometheus.Registry

	AcquisitionsTotal   *prometheus.CounterVec
	AcquisitionDuration *prometheus.HistogramVec
	BackgroundFailures  *prometheus.CounterVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

var _ airquality.Observer = (*Metrics)(nil)

// New creates the collectors on a fresh registry together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,

		AcquisitionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "airvita_acquisitions_total",
				Help: "Total number of acquisitions by source and outcome",
			},
			[]string{"source", "outcome"},
		),

		AcquisitionDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "airvita_acquisition_duration_seconds",
				Help:    "Acquisition duration in seconds, locate plus fetch",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
			},
			[]string{"source"},
		),

		BackgroundFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "airvita_background_failures_total",
				Help: "Failed history writes and sink publishes",
			},
			[]string{"stage"},
		),

		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "airvita_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "airvita_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
	}
}

func (m *Metrics) ObserveAcquisition(source airquality.Source, outcome string, elapsed time.Duration) {
	m.AcquisitionsTotal.WithLabelValues(string(source), outcome).Inc()
	m.AcquisitionDuration.WithLabelValues(string(source)).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveBackgroundFailure(stage string) {
	m.BackgroundFailures.WithLabelValues(stage).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, e.g. for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}
