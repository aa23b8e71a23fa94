package metrics

import "github.com/prometheus/client_golang/prometheus"

// WorkMetrics tracks explanation requests through the coordinator.
type WorkMetrics struct {
	SubmittedTotal    prometheus.Counter
	CompletedTotal    *prometheus.CounterVec
	InferenceDuration prometheus.Histogram
	InFlight          prometheus.Gauge
	EvictedTotal      prometheus.Counter
	StoreErrors       prometheus.Counter
}

// NewWorkMetrics creates and registers work item metrics on the given registry.
func NewWorkMetrics(reg prometheus.Registerer) *WorkMetrics {
	m := &WorkMetrics{
		SubmittedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "work",
			Name:      "submitted_total",
			Help:      "Total number of accepted work items.",
		}),
		CompletedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "work",
			Name:      "finished_total",
			Help:      "Total number of work items reaching a terminal status, by status.",
		}, []string{"status"}),
		InferenceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "work",
			Name:      "inference_duration_seconds",
			Help:      "Time spent in inference per work item.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "work",
			Name:      "in_flight",
			Help:      "Number of work items currently processing.",
		}),
		EvictedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "work",
			Name:      "evicted_total",
			Help:      "Total number of terminal work items evicted by retention.",
		}),
		StoreErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "work",
			Name:      "store_errors_total",
			Help:      "Total number of failed work item writes to the durable store.",
		}),
	}

	reg.MustRegister(m.SubmittedTotal, m.CompletedTotal, m.InferenceDuration, m.InFlight, m.EvictedTotal, m.StoreErrors)
	return m
}
