package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// pendingOperations is the number of queued operations across all
	// open queues in this process.
	pendingOperations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "listsync",
			Subsystem: "queue",
			Name:      "pending_operations",
			Help:      "Number of operations waiting for the remote service",
		},
	)

	// drainResultsTotal counts per-operation drain outcomes.
	// Labels: result (acked, failed, skipped)
	drainResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "listsync",
			Subsystem: "queue",
			Name:      "drain_results_total",
			Help:      "Total number of replayed operations by outcome",
		},
		[]string{"result"},
	)
)
