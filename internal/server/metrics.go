package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "neb_jobs_started_total",
		Help: "Number of path optimization jobs accepted.",
	})

	jobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neb_jobs_finished_total",
		Help: "Number of path optimization jobs finished, by terminal status.",
	}, []string{"status"})

	relaxationSteps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "neb_relaxation_steps_total",
		Help: "Number of accepted relaxation steps across all jobs.",
	})

	evaluatorCalls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "neb_evaluator_calls_total",
		Help: "Number of single-image evaluator invocations.",
	})

	runningJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "neb_running_jobs",
		Help: "Number of currently running path optimization jobs.",
	})
)
