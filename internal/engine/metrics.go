package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// mutationsTotal counts user mutations by final outcome.
	// Labels: op (add, toggle, edit, delete), outcome (synced, queued, reverted, rejected)
	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "listsync",
			Subsystem: "engine",
			Name:      "mutations_total",
			Help:      "Total number of list mutations by outcome",
		},
		[]string{"op", "outcome"},
	)

	// loadsTotal counts list loads by source (remote, cache).
	loadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "listsync",
			Subsystem: "engine",
			Name:      "loads_total",
			Help:      "Total number of list loads by data source",
		},
		[]string{"source"},
	)

	// errorsTotal counts surfaced failures by classified kind.
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "listsync",
			Subsystem: "engine",
			Name:      "errors_total",
			Help:      "Total number of surfaced errors by kind",
		},
		[]string{"kind"},
	)

	drainDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "listsync",
			Subsystem: "engine",
			Name:      "drain_duration_seconds",
			Help:      "Duration of reconnect drains in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
