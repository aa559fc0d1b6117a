package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reservationsCreatedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "numlease",
			Subsystem: "reservations",
			Name:      "created_total",
			Help:      "Reservations created, by provider.",
		},
		[]string{"provider"},
	)
	createFailuresCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "numlease",
			Subsystem: "reservations",
			Name:      "create_failures_total",
			Help:      "Failed reservation attempts, by reason.",
		},
		[]string{"reason"},
	)
	terminalTransitionsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "numlease",
			Subsystem: "reservations",
			Name:      "terminal_transitions_total",
			Help:      "Committed terminal transitions, by resulting status.",
		},
		[]string{"status"},
	)
	discardedCodesCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "numlease",
			Subsystem: "reservations",
			Name:      "discarded_codes_total",
			Help:      "Codes that arrived after a terminal transition and were discarded.",
		},
	)
)
