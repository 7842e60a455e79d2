// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AdmissionCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_cycles_total",
			Help: "Admission cycles by outcome (shown, none_available)",
		},
		[]string{"outcome", "reason"},
	)

	AdmissionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "admission_cycle_duration_seconds",
			Help:    "Duration of a single admission cycle",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		},
		[]string{"outcome"},
	)

	BlendSelections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blend_selections_total",
			Help: "Events selected by blending, by pool and whether the other pool was used as fallback",
		},
		[]string{"pool", "fallback"},
	)

	SnapshotFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_fetches_total",
			Help: "Widget snapshot fetches by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	EventInteractions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_interactions_total",
			Help: "Recorded views and clicks",
		},
		[]string{"kind"},
	)

	GraduationCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graduation_cycles_total",
			Help: "Graduation cycles by outcome (graduated, not_ready, already_graduated, failed, skipped)",
		},
		[]string{"outcome"},
	)

	GraduationProgress = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "graduation_progress_percent",
			Help:    "Distribution of computed graduation progress",
			Buckets: []float64{10, 25, 50, 75, 90, 100},
		},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)
)
