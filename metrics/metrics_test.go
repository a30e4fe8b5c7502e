package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/zephyrtronium/lcong/metrics"
)

func TestNew(t *testing.T) {
	m := metrics.New("lcong")
	reg := prometheus.NewRegistry()
	// Registration fails on duplicate or inconsistent descriptors.
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			t.Errorf("couldn't register %v: %v", c, err)
		}
	}
}

func TestObservers(t *testing.T) {
	m := metrics.New("lcong")
	m.SetsEvaluated.Observe(1)
	m.SetsEvaluated.Observe(2)
	if got := testutil.ToFloat64(m.SetsEvaluated); got != 3 {
		t.Errorf("wrong counter: want 3, got %v", got)
	}
	m.SetsPending.Observe(10)
	m.SetsPending.Observe(4)
	if got := testutil.ToFloat64(m.SetsPending); got != 4 {
		t.Errorf("wrong gauge: want 4, got %v", got)
	}
	m.StatPasses.Observe(1, "monobit")
	m.StatPasses.Observe(1, "poker")
	m.StatPasses.Observe(1, "monobit")
	if got := testutil.CollectAndCount(m.StatPasses); got != 2 {
		t.Errorf("wrong number of labelled counters: want 2, got %d", got)
	}
	m.Merit.Observe(0.5, "2")
	m.Merit.Observe(0.05, "3")
	if got := testutil.CollectAndCount(m.Merit); got != 2 {
		t.Errorf("wrong number of labelled histograms: want 2, got %d", got)
	}
}
