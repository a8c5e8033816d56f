// Package metrics holds the Prometheus collectors of the orchestrator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	//nolint: revive
	JobsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deployer_jobs_submitted",
			Help: "The total number of jobs handed to the executor",
		},
		[]string{"job_type"},
	)

	//nolint: revive
	JobsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deployer_jobs_rejected",
			Help: "The total number of deploy/undeploy requests answered without a job",
		},
		[]string{"job_type", "reason"},
	)

	//nolint: revive
	JobsSubmitFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deployer_jobs_submit_failed",
			Help: "The total number of jobs the executor refused",
		},
		[]string{"job_type"},
	)

	//nolint: revive
	JobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deployer_jobs_completed",
			Help: "The total number of jobs that reached a terminal status",
		},
		[]string{"job_type", "status"},
	)

	//nolint: revive
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "deployer_job_duration_seconds",
			Help: "The duration (seconds) from job acceptance to completion",
		},
		[]string{"job_type"},
	)

	//nolint: revive
	StatusResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deployer_status_resolutions",
			Help: "The total number of status lookups by the tier that answered",
		},
		[]string{"source"},
	)
)
