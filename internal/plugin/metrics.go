package plugin

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package outcome labels.
const (
	ResultInitialized = "initialized"
	ResultFailed      = "failed"
	ResultSkipped     = "skipped"
	ResultUnresolved  = "unresolved"
)

// Metrics collects loader telemetry on a private registry.
// A nil *Metrics discards everything.
type Metrics struct {
	registry *prometheus.Registry

	packages    *prometheus.CounterVec
	initLatency *prometheus.HistogramVec
	pending     prometheus.Gauge
	outstanding prometheus.Gauge
	cycles      prometheus.Counter
}

// NewMetrics creates loader metrics under namespace (default "luashell").
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "luashell"
	}

	m := &Metrics{registry: prometheus.NewRegistry()}

	m.packages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "packages",
			Name:      "total",
			Help:      "Packages processed by the loader, by result",
		},
		[]string{"result"},
	)

	m.initLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "packages",
			Name:      "init_duration_seconds",
			Help:      "Time from entry point invocation to completion",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		},
		[]string{"result"},
	)

	m.pending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "packages",
		Name:      "pending",
		Help:      "Packages waiting for dependencies",
	})

	m.outstanding = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "packages",
		Name:      "outstanding_completions",
		Help:      "Entry points invoked whose completion has not been delivered",
	})

	m.cycles = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "packages",
		Name:      "dependency_cycles_total",
		Help:      "Dependency cycles found among unresolved packages",
	})

	m.registry.MustRegister(m.packages, m.initLatency, m.pending, m.outstanding, m.cycles)
	return m
}

// Registry returns the prometheus registry holding the loader metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler exposing the loader metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) recordResult(result string) {
	if m == nil {
		return
	}
	m.packages.WithLabelValues(result).Inc()
}

func (m *Metrics) recordInit(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := ResultInitialized
	if err != nil {
		result = ResultFailed
	}
	m.initLatency.WithLabelValues(result).Observe(d.Seconds())
}

func (m *Metrics) setPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}

func (m *Metrics) addOutstanding(delta float64) {
	if m == nil {
		return
	}
	m.outstanding.Add(delta)
}

func (m *Metrics) recordCycles(n int) {
	if m == nil {
		return
	}
	m.cycles.Add(float64(n))
}
