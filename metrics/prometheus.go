package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func NewPromCounter(m prometheus.Counter) Observer {
	return &PrometheusMetric{
		observe: func(val float64, labels ...string) {
			m.Add(val)
		},
		Collector: m,
	}
}

// NewPromCounterVec adds the observed value to the counter with the given
// labels.
func NewPromCounterVec(m *prometheus.CounterVec) Observer {
	return &PrometheusMetric{
		observe: func(val float64, labels ...string) {
			m.WithLabelValues(labels...).Add(val)
		},
		Collector: m,
	}
}

// NewPromGauge sets the gauge to each observed value.
func NewPromGauge(m prometheus.Gauge) Observer {
	return &PrometheusMetric{
		observe: func(val float64, labels ...string) {
			m.Set(val)
		},
		Collector: m,
	}
}

// for histogram or summary vecs
func NewPromObserverVec(m prometheus.ObserverVec) Observer {
	return &PrometheusMetric{
		observe: func(val float64, labels ...string) {
			m.WithLabelValues(labels...).Observe(val)
		},
		Collector: m,
	}
}

func NewPromHistogram(m prometheus.Histogram) Observer {
	return &PrometheusMetric{
		observe: func(val float64, labels ...string) {
			m.Observe(val)
		},
		Collector: m,
	}
}

type PrometheusMetric struct {
	observe func(val float64, labels ...string)
	prometheus.Collector
}

func (m *PrometheusMetric) Observe(val float64, labels ...string) {
	m.observe(val, labels...)
}

// New creates the sweep metrics under the given namespace.
func New(namespace string) *Metrics {
	latency := []float64{0.001, 0.01, 0.1, 1, 10, 60, 600}
	return &Metrics{
		SetsEvaluated: NewPromCounter(
			prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sweep",
				Name:      "evaluated",
				Help:      "Number of parameter sets evaluated to completion.",
			}),
		),
		SetsFailed: NewPromCounter(
			prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sweep",
				Name:      "failed",
				Help:      "Number of parameter sets whose evaluation stopped with an error.",
			}),
		),
		SetsSkipped: NewPromCounter(
			prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sweep",
				Name:      "skipped",
				Help:      "Number of parameter sets skipped because a result was already stored.",
			}),
		),
		SetsPending: NewPromGauge(
			prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "sweep",
				Name:      "pending",
				Help:      "Number of parameter sets remaining in the current sweep.",
			}),
		),
		StatPasses: NewPromCounterVec(
			prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "stattest",
				Name:      "passes",
				Help:      "Number of statistical test passes.",
			}, []string{"test"}),
		),
		SpectralLatency: NewPromObserverVec(
			prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Buckets:   latency,
				Namespace: namespace,
				Subsystem: "spectral",
				Name:      "latency",
				Help:      "How long spectral tests take in seconds.",
			}, []string{"dims"}),
		),
		SpectralFailures: NewPromCounter(
			prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "spectral",
				Name:      "failures",
				Help:      "Number of spectral tests that stopped with an error.",
			}),
		),
		Merit: NewPromObserverVec(
			prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5},
				Namespace: namespace,
				Subsystem: "spectral",
				Name:      "merit",
				Help:      "Figures of merit of tested generators.",
			}, []string{"t"}),
		),
	}
}
