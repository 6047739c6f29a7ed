package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ferris",
		Name:      "verifications_total",
		Help:      "Resolved member verifications by outcome.",
	}, []string{"outcome"})

	PendingVerifications = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ferris",
		Name:      "verifications_pending",
		Help:      "Members currently waiting on the welcome prompt.",
	})

	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ferris",
		Name:      "commands_total",
		Help:      "Dispatched text commands by name and result.",
	}, []string{"command", "result"})

	Reminders = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ferris",
		Name:      "reminders_pending",
		Help:      "Reminders waiting to fire.",
	})
)
