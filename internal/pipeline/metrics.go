package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "regai",
		Subsystem: "pipeline",
		Name:      "cycles_completed_total",
		Help:      "Grading cycles that produced a final grade.",
	})
	cyclesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "regai",
		Subsystem: "pipeline",
		Name:      "cycles_failed_total",
		Help:      "Grading cycles that terminated with an error.",
	})
	budgetExhaustions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "regai",
		Subsystem: "pipeline",
		Name:      "budget_exhaustions_total",
		Help:      "Cycles finalized because the critique iteration budget ran out.",
	})
	revisionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "regai",
		Subsystem: "pipeline",
		Name:      "revisions_total",
		Help:      "Revision grades created across all cycles.",
	})
	overridesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "regai",
		Subsystem: "pipeline",
		Name:      "overrides_total",
		Help:      "Teacher overrides reconciled into the knowledge base.",
	})
)
