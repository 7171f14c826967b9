package generation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ecomstudio_generations_submitted_total",
		Help: "Total number of video generation jobs submitted to the backend.",
	})
	generationsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ecomstudio_generations_completed_total",
		Help: "Total number of video generations that produced a video.",
	})
	generationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ecomstudio_generations_failed_total",
		Help: "Total number of video generations that ended in failure or timeout.",
	})
	generationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ecomstudio_generation_duration_seconds",
		Help:    "Wall time from submission to a terminal generation state.",
		Buckets: prometheus.ExponentialBuckets(5, 2, 8),
	})
)
