// Package metrics exposes split service counters in the Prometheus format.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "splitpdf"

type Metrics struct {
	registry *prometheus.Registry

	jobs      *prometheus.CounterVec
	outputs   prometheus.Counter
	bytes     prometheus.Counter
	oversized prometheus.Counter
	duration  prometheus.Histogram
}

// New creates the metrics on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Split jobs by final status.",
		}, []string{"status"}),
		outputs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outputs_total",
			Help:      "Output files written.",
		}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_bytes_total",
			Help:      "Measured bytes of all output files written.",
		}),
		oversized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oversized_pages_total",
			Help:      "Single pages written alone because they exceed the budget.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time from a job being picked up to it finishing.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
	m.registry.MustRegister(
		m.jobs, m.outputs, m.bytes, m.oversized, m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// JobFinished records a job reaching a final status.
func (m *Metrics) JobFinished(status string, took time.Duration) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(status).Inc()
	m.duration.Observe(took.Seconds())
}

// OutputWritten records one output file.
func (m *Metrics) OutputWritten(size int64, oversized bool) {
	if m == nil {
		return
	}
	m.outputs.Inc()
	m.bytes.Add(float64(size))
	if oversized {
		m.oversized.Inc()
	}
}

// QueueDepth reports fn as the current queue depth gauge.
func (m *Metrics) QueueDepth(fn func() int) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Jobs waiting for a worker.",
	}, func() float64 { return float64(fn()) }))
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
