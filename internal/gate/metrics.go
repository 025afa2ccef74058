package gate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gateDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colofail_gate_decisions_total",
			Help: "Gate decisions by outcome",
		},
		[]string{"outcome"},
	)
	registryMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colofail_registry_mutations_total",
			Help: "Countries added to or removed from the failing registry",
		},
		[]string{"action"},
	)
	injectedDelaySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "colofail_injected_delay_seconds",
			Help:    "Delay injected before failing a blocked request",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
	failingCountries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "colofail_failing_countries",
			Help: "Number of countries in the registry at the last read",
		},
	)
)
