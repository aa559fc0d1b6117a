package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pollCyclesCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "numlease",
			Subsystem: "scheduler",
			Name:      "poll_cycles_total",
			Help:      "Completed polling cycles.",
		},
	)
	pollChecksCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "numlease",
			Subsystem: "scheduler",
			Name:      "poll_checks_total",
			Help:      "Per-reservation provider checks, by outcome.",
		},
		[]string{"outcome"}, // code, empty, error
	)
	pollCycleDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "numlease",
			Subsystem: "scheduler",
			Name:      "poll_cycle_duration_seconds",
			Help:      "Duration of one polling cycle.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	sweepExpiredCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "numlease",
			Subsystem: "scheduler",
			Name:      "swept_reservations_total",
			Help:      "Reservations expired by the sweep.",
		},
	)
)
