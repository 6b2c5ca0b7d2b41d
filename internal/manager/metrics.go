package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	switchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inpaintd",
			Subsystem: "manager",
			Name:      "switch_total",
			Help:      "Backend switch attempts by result",
		},
		[]string{"result"},
	)

	backendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "inpaintd",
			Subsystem: "manager",
			Name:      "backend_infer_seconds",
			Help:      "Duration of backend inference calls in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"backend"},
	)

	backendFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inpaintd",
			Subsystem: "manager",
			Name:      "backend_failures_total",
			Help:      "Backend inference failures by class",
		},
		[]string{"backend", "class"},
	)
)

func init() {
	prometheus.MustRegister(switchTotal, backendDuration, backendFailures)
}
