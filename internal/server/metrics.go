package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "steepr_optimizations_started_total",
		Help: "Number of gradient-ascent runs started through the API.",
	})

	jobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "steepr_optimizations_finished_total",
		Help: "Number of gradient-ascent runs finished, by terminal status.",
	}, []string{"status"})

	jobIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "steepr_optimization_iterations",
		Help:    "Iterations used by completed gradient-ascent runs.",
		Buckets: prometheus.LinearBuckets(0, 5, 6),
	})

	gridsSampled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "steepr_grids_sampled_total",
		Help: "Number of heatmap grids sampled for display shells.",
	})
)
