package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	dispatchesTotal        *prometheus.CounterVec
	dispatchLatency        *prometheus.HistogramVec
	arrivalsTotal          prometheus.Counter
	incidentsResolvedTotal prometheus.Counter
	unitsFreedTotal        prometheus.Counter
	invariantViolations    prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.HistogramVec, prometheus.Counter, prometheus.Counter, prometheus.Counter, prometheus.Counter) {
	disp := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatches_total",
			Help: "Number of dispatch requests by unit type and outcome",
		},
		[]string{"unit_type", "outcome"},
	)
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_selection_latency_seconds",
			Help:    "Latency of nearest-unit selection and claim",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"unit_type"},
	)
	arr := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "unit_arrivals_total",
			Help: "Number of units that reached their incident scene",
		},
	)
	res := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "incidents_resolved_total",
			Help: "Number of incidents resolved",
		},
	)
	freed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "units_freed_total",
			Help: "Number of units returned to IDLE by incident resolution",
		},
	)
	inv := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleet_invariant_violations_total",
			Help: "Number of detected fleet state invariant violations",
		},
	)
	return disp, lat, arr, res, freed, inv
}

func init() {
	dispatchesTotal, dispatchLatency, arrivalsTotal, incidentsResolvedTotal, unitsFreedTotal, invariantViolations = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(dispatchesTotal, dispatchLatency, arrivalsTotal, incidentsResolvedTotal, unitsFreedTotal, invariantViolations)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	dispatchesTotal, dispatchLatency, arrivalsTotal, incidentsResolvedTotal, unitsFreedTotal, invariantViolations = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
