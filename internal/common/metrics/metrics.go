package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes recorded per category pass.
const (
	OutcomePrimary  = "primary"
	OutcomeFallback = "fallback"
	OutcomeEmpty    = "empty"
	OutcomeFailed   = "failed"
)

var (
	MatchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_requests_total",
			Help: "Total number of match requests by transport and outcome",
		},
		[]string{"transport", "outcome"},
	)

	MatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "match_duration_seconds",
			Help:    "End-to-end match latency in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"transport"},
	)

	CategoryResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_category_results_total",
			Help: "Category passes by how the category was resolved",
		},
		[]string{"category", "outcome"},
	)

	NarrationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_narration_failures_total",
			Help: "Narration calls that failed or timed out",
		},
		[]string{"provider"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_cache_lookups_total",
			Help: "Match cache lookups by result",
		},
		[]string{"result"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_events_published_total",
			Help: "Match completed events by publish outcome",
		},
		[]string{"outcome"},
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

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)
