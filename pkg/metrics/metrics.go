// Package metrics provides Prometheus metrics for the clover service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScoringRunsTotal tracks duplicate detection runs
	ScoringRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "scoring",
			Name:      "runs_total",
			Help:      "Total number of duplicate detection runs by status",
		},
		[]string{"status"},
	)

	// ScoringDuration tracks how long a detection run takes
	ScoringDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "scoring",
			Name:      "run_duration_seconds",
			Help:      "Duration of duplicate detection runs in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	// DuplicateGroupsFound tracks groups surfaced per confidence tier
	DuplicateGroupsFound = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "scoring",
			Name:      "groups_found_total",
			Help:      "Total number of duplicate groups found by confidence",
		},
		[]string{"confidence"},
	)

	// MergesTotal tracks merge attempts by outcome and the stage that failed
	MergesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "merge",
			Name:      "merges_total",
			Help:      "Total number of merge attempts by status and failed stage",
		},
		[]string{"status", "stage"},
	)

	// MergeDuration tracks merge execution time
	MergeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "merge",
			Name:      "duration_seconds",
			Help:      "Duration of merge executions in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// DependentsTransferred tracks dependents re-pointed to a survivor
	DependentsTransferred = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "merge",
			Name:      "dependents_transferred_total",
			Help:      "Total number of dependent records transferred by kind",
		},
		[]string{"kind"},
	)

	// ClientsDeleted tracks duplicate clients removed by merges
	ClientsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "merge",
			Name:      "clients_deleted_total",
			Help:      "Total number of duplicate clients deleted",
		},
	)
)
