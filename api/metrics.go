package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vns_vm_steps_total",
			Help: "Total number of VM steps executed by sessions, by resulting state.",
		},
		[]string{"state"},
	)

	dispatchErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vns_dispatch_errors_total",
		Help: "Total number of actions that failed dispatch.",
	})

	compilationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vns_compilations_total",
			Help: "Total number of story compilations by status.",
		},
		[]string{"status"},
	)

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vns_sessions_active",
		Help: "Number of open play sessions.",
	})
)

func compilationStatus(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
