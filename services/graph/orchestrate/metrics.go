package orchestrate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentforge_validation_runs_total",
		Help: "Total number of workflow validation runs, by outcome.",
	}, []string{"outcome"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agentforge_validation_duration_seconds",
		Help:    "Duration of a single validation orchestrator run.",
		Buckets: prometheus.DefBuckets,
	})
)
