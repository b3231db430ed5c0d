package notifier

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_jobs_total",
		Help: "Completion events processed, labeled by result.",
	}, []string{"result"})

	eventDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "notification_job_duration_seconds",
		Help:    "Time spent handling one completion event.",
		Buckets: prometheus.DefBuckets,
	})
)
