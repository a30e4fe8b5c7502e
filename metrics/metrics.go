// Package metrics defines the observations made during sweeps.
package metrics

import "github.com/prometheus/client_golang/prometheus"

type Observer interface {
	Observe(val float64, labels ...string)

	// Tightly coupled to the prometheus collector type for now.
	prometheus.Collector
}

type Metrics struct {
	// SetsEvaluated counts parameter sets evaluated to completion.
	SetsEvaluated Observer
	// SetsFailed counts parameter sets whose evaluation stopped with an error.
	SetsFailed Observer
	// SetsSkipped counts parameter sets already present in the store.
	SetsSkipped Observer
	// SetsPending is the number of parameter sets left in the current sweep.
	SetsPending Observer
	// StatPasses counts statistical test passes, labelled by test name.
	StatPasses Observer
	// SpectralLatency observes the time to run a spectral test in seconds,
	// labelled by maximum dimension.
	SpectralLatency Observer
	// SpectralFailures counts spectral tests that returned an error.
	SpectralFailures Observer
	// Merit observes figures of merit, labelled by dimension.
	Merit Observer
}

func (m Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.SetsEvaluated,
		m.SetsFailed,
		m.SetsSkipped,
		m.SetsPending,
		m.StatPasses,
		m.SpectralLatency,
		m.SpectralFailures,
		m.Merit,
	}
}
