package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conversion_jobs_total",
		Help: "Conversion jobs processed, labeled by result.",
	}, []string{"result"})

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "conversion_job_duration_seconds",
		Help:    "Wall-clock time from claim to completion for successful jobs.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)
