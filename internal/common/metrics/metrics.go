// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "dispatch_worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dispatch_worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	ScoringFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_scoring_failures_total",
			Help: "Technicians scored as zero because scoring failed",
		},
	)

	PredictorFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_predictor_fallbacks_total",
			Help: "Recommendations that fell back to rule-only scoring",
		},
		[]string{"reason"},
	)

	RouteCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_route_cache_lookups_total",
			Help: "Route cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	DiversionDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_diversion_decisions_total",
			Help: "Emergency diversion decisions by diversion type",
		},
		[]string{"type"},
	)

	TrackedTechnicians = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_tracked_technicians",
			Help: "Technicians with a current location snapshot",
		},
	)

	LocationUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_location_updates_total",
			Help: "Location reports received, by source and outcome",
		},
		[]string{"source", "result"},
	)

	TrackingEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_tracking_evictions_total",
			Help: "Technicians dropped from tracking after going silent",
		},
	)
)
