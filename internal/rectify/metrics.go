package rectify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flatdoc_stage_duration_seconds",
			Help:    "Duration of each rectification stage in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"stage"},
	)

	stageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flatdoc_stage_failures_total",
			Help: "Total number of rectification runs aborted per stage",
		},
		[]string{"stage"},
	)

	documentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flatdoc_documents_total",
			Help: "Total number of documents processed by the rectifier",
		},
		[]string{"status"}, // status: ok, error
	)

	detectedTilt = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flatdoc_residual_tilt_degrees",
			Help:    "Absolute residual tilt corrected after the perspective warp",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 45},
		},
	)
)

func observeStage(stage string, d time.Duration, err error) {
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		stageFailures.WithLabelValues(stage).Inc()
	}
}
