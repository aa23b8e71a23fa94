package metrics

import "github.com/prometheus/client_golang/prometheus"

// SessionMetrics tracks the model session lifecycle.
type SessionMetrics struct {
	State         prometheus.Gauge
	LoadsTotal    *prometheus.CounterVec
	LoadDuration  prometheus.Histogram
	ReleasesTotal prometheus.Counter
	DisposeErrors prometheus.Counter
	Teardowns     prometheus.Counter
}

// NewSessionMetrics creates and registers session metrics on the given registry.
func NewSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	m := &SessionMetrics{
		State: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "state",
			Help:      "Current session state (0=unloaded, 1=loading, 2=loaded, 3=failed).",
		}),
		LoadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "loads_total",
			Help:      "Total number of model load attempts, by result.",
		}, []string{"result"}),
		LoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "load_duration_seconds",
			Help:      "Time taken to load the model.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		ReleasesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "releases_total",
			Help:      "Total number of graceful model releases.",
		}),
		DisposeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "dispose_errors_total",
			Help:      "Total number of swallowed sub-component disposal errors.",
		}),
		Teardowns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "teardowns_total",
			Help:      "Total number of forced session teardowns.",
		}),
	}

	reg.MustRegister(m.State, m.LoadsTotal, m.LoadDuration, m.ReleasesTotal, m.DisposeErrors, m.Teardowns)
	return m
}
