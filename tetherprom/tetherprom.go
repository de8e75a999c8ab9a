// Package tetherprom exports container activity as Prometheus metrics.
//
//	m := tetherprom.New("app")
//	c := tether.New(m.Options()...)
//	registry.MustRegister(m, tetherprom.Watch(c, "app"))
package tetherprom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/danpasecinic/tether"
)

const subsystem = "tether"

const (
	resultSuccess = "success"
	resultError   = "error"
)

// Metrics collects counters and histograms fed by container observers.
type Metrics struct {
	resolutions        *prometheus.CounterVec
	resolveDuration    *prometheus.HistogramVec
	provided           prometheus.Counter
	activations        *prometheus.CounterVec
	activationDuration *prometheus.HistogramVec
	derived            prometheus.Counter
	disposals          *prometheus.CounterVec
	prunes             *prometheus.CounterVec
	pruned             prometheus.Counter
	pruneDuration      prometheus.Histogram
	hookDuration       *prometheus.HistogramVec
}

func New(namespace string) *Metrics {
	return &Metrics{
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "resolutions_total",
				Help:      "Number of service resolutions",
			}, []string{"service", "result"},
		),
		resolveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "resolve_duration_seconds",
				Help:      "Time spent resolving a service",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
			}, []string{"service"},
		),
		provided: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "provided_total",
				Help:      "Number of registered providers",
			},
		),
		activations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "activations_total",
				Help:      "Number of instances whose declared dependencies were built",
			}, []string{"service", "result"},
		),
		activationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "activation_duration_seconds",
				Help:      "Time spent building the declared dependencies of an instance",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
			}, []string{"service"},
		),
		derived: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "derived_created_total",
				Help:      "Number of dependencies created for a creator",
			},
		),
		disposals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "disposals_total",
				Help:      "Number of disposed scope entries",
			}, []string{"dependency", "result"},
		),
		prunes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "prunes_total",
				Help:      "Number of prune passes",
			}, []string{"result"},
		),
		pruned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "pruned_entries_total",
				Help:      "Number of entries released because their creator was collected",
			},
		),
		pruneDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "prune_duration_seconds",
				Help:      "Time spent in a prune pass",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
		),
		hookDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "hook_duration_seconds",
				Help:      "Time spent in OnStart and OnStop hooks",
				Buckets:   prometheus.DefBuckets,
			}, []string{"service", "phase", "result"},
		),
	}
}

// Options returns the container options that feed m.
func (m *Metrics) Options() []tether.Option {
	return []tether.Option{
		tether.WithResolveObserver(m.observeResolve),
		tether.WithProvideObserver(m.observeProvide),
		tether.WithActivateObserver(m.observeActivate),
		tether.WithDisposeObserver(m.observeDispose),
		tether.WithPruneObserver(m.observePrune),
		tether.WithStartObserver(m.observeHook("start")),
		tether.WithStopObserver(m.observeHook("stop")),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.resolutions,
		m.resolveDuration,
		m.provided,
		m.activations,
		m.activationDuration,
		m.derived,
		m.disposals,
		m.prunes,
		m.pruned,
		m.pruneDuration,
		m.hookDuration,
	}
}

func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

func (m *Metrics) observeResolve(key string, d time.Duration, err error) {
	m.resolutions.WithLabelValues(key, result(err)).Inc()
	m.resolveDuration.WithLabelValues(key).Observe(d.Seconds())
}

func (m *Metrics) observeProvide(string) {
	m.provided.Inc()
}

func (m *Metrics) observeActivate(key string, dependencies int, d time.Duration, err error) {
	m.activations.WithLabelValues(key, result(err)).Inc()
	m.activationDuration.WithLabelValues(key).Observe(d.Seconds())
	if err == nil {
		m.derived.Add(float64(dependencies))
	}
}

func (m *Metrics) observeDispose(key string, err error) {
	m.disposals.WithLabelValues(key, result(err)).Inc()
}

func (m *Metrics) observePrune(pruned int, d time.Duration, err error) {
	m.prunes.WithLabelValues(result(err)).Inc()
	m.pruned.Add(float64(pruned))
	m.pruneDuration.Observe(d.Seconds())
}

func (m *Metrics) observeHook(phase string) func(string, time.Duration, error) {
	return func(key string, d time.Duration, err error) {
		m.hookDuration.WithLabelValues(key, phase, result(err)).Observe(d.Seconds())
	}
}

func result(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}
