package pipeline

import "github.com/prometheus/client_golang/prometheus"

var (
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "inpaintd",
			Subsystem: "pipeline",
			Name:      "process_seconds",
			Help:      "Duration of the normalize to encode span in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"op", "outcome"},
	)

	requestFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inpaintd",
			Subsystem: "pipeline",
			Name:      "failures_total",
			Help:      "Failed requests by operation and kind",
		},
		[]string{"op", "kind"},
	)
)

func init() {
	prometheus.MustRegister(requestDuration, requestFailures)
}
