package sim

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ticksTotal   prometheus.Counter
	tickDuration prometheus.Histogram
	unitsMoved   prometheus.Counter
)

func newCollectors() (prometheus.Counter, prometheus.Histogram, prometheus.Counter) {
	ticks := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sim_ticks_total",
			Help: "Number of executed simulation ticks",
		},
	)
	dur := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sim_tick_duration_seconds",
			Help:    "Duration of one full movement and arrival pass",
			Buckets: prometheus.DefBuckets,
		},
	)
	moved := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sim_units_moved_total",
			Help: "Number of per-unit movement updates applied",
		},
	)
	return ticks, dur, moved
}

func init() {
	ticksTotal, tickDuration, unitsMoved = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers simulation metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(ticksTotal, tickDuration, unitsMoved)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	ticksTotal, tickDuration, unitsMoved = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
