package connectivity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// connectivityStatus is 1 while online, 0 while offline.
	connectivityStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "listsync",
			Subsystem: "connectivity",
			Name:      "online",
			Help:      "Current connectivity status (1=online, 0=offline)",
		},
	)

	reconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "listsync",
			Subsystem: "connectivity",
			Name:      "reconnects_total",
			Help:      "Total number of offline to online transitions",
		},
	)
)
