package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echomind_submissions_total",
		Help: "Number of submitted questions by outcome.",
	}, []string{"outcome"})
	stageDurationMetric = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "echomind_stage_duration_seconds",
		Help:    "Time spent in each stage of the submission pipeline.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"stage"})
	retrievalDegradedMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "echomind_retrieval_degraded_total",
		Help: "Number of submissions answered without context because the similarity store failed.",
	})
)

const (
	outcomeDone    = "done"
	outcomeFailed  = "failed"
	outcomeUnsaved = "unsaved"
	outcomeInvalid = "invalid"
)
