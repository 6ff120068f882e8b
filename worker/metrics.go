package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	jobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recurrence_job_runs_total",
		Help: "Total worker passes by job and result",
	}, []string{"job", "result"})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recurrence_job_duration_seconds",
		Help:    "Duration of worker passes",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
	}, []string{"job"})

	rulesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recurrence_generation_rules_processed_total",
		Help: "Total rules materialized successfully",
	})

	rulesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recurrence_generation_rules_failed_total",
		Help: "Total rules skipped because of an error, by reason",
	}, []string{"reason"})

	instancesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recurrence_generation_instances_created_total",
		Help: "Total instances created by generation",
	})

	instancesRetired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recurrence_cleanup_instances_deleted_total",
		Help: "Total instances deleted by cleanup",
	})

	dependentsRetired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recurrence_cleanup_dependents_deleted_total",
		Help: "Total exception rows deleted along with their instance",
	})

	instancesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recurrence_cleanup_instances_skipped_total",
		Help: "Total expired instances kept because exceptions reference them",
	})
)
