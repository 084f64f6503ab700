package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zyndicator_frames_total",
			Help: "Total number of processed frames by outcome",
		},
		[]string{"outcome"},
	)

	recognitionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "zyndicator_recognition_duration_seconds",
			Help:    "Text recognition latency per frame",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	forwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zyndicator_forwarded_codes_total",
			Help: "Total number of forwarded codes by server status",
		},
		[]string{"status"},
	)
)
