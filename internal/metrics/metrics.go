// Package metrics holds the Prometheus collectors for kitsync job runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	JobRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kitsync_job_runs_total",
		Help: "Job runs by job and result (ok, locked, error)",
	}, []string{"job", "result"})

	JobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kitsync_job_duration_seconds",
		Help:    "Wall time of a job run",
		Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"job"})

	DocumentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kitsync_documents_total",
		Help: "Documents processed by job and outcome",
	}, []string{"job", "outcome"})

	BroadcastsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kitsync_broadcasts_created_total",
		Help: "Broadcasts created in Kit by audience mode",
	}, []string{"audience"})

	ImagesRelayed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kitsync_images_relayed_total",
		Help: "Image relay attempts by result",
	}, []string{"result"})

	LastRunTimestamp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "kitsync_last_run_timestamp_seconds",
		Help: "Unix time of the last completed run per job",
	}, []string{"job"})
)

// MustRegister registers every kitsync collector.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		JobRunsTotal,
		JobDuration,
		DocumentsTotal,
		BroadcastsCreated,
		ImagesRelayed,
		LastRunTimestamp,
	)
}
