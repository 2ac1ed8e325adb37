package retry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// attemptsTotal counts individual attempts, including the first.
	attemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "listsync",
			Subsystem: "retry",
			Name:      "attempts_total",
			Help:      "Total number of remote operation attempts",
		},
		[]string{"operation"},
	)

	// resultsTotal counts final outcomes.
	// Labels: result (success, fatal, exhausted, canceled)
	resultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "listsync",
			Subsystem: "retry",
			Name:      "results_total",
			Help:      "Total number of retried operations by final result",
		},
		[]string{"operation", "result"},
	)
)
