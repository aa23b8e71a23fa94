package metrics

import "github.com/prometheus/client_golang/prometheus"

// PushMetrics holds metrics for websocket push notifications.
type PushMetrics struct {
	ActiveConnections  prometheus.Gauge
	NotificationsTotal *prometheus.CounterVec
	SlowClientsEvicted prometheus.Counter
}

// NewPushMetrics creates and registers push metrics on the given registry.
func NewPushMetrics(reg prometheus.Registerer) *PushMetrics {
	m := &PushMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "active_connections",
			Help:      "Number of attached client views.",
		}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "notifications_total",
			Help:      "Total number of request update notifications, by outcome.",
		}, []string{"outcome"}),
		SlowClientsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "slow_clients_evicted_total",
			Help:      "Total number of clients dropped for a full send buffer.",
		}),
	}

	reg.MustRegister(m.ActiveConnections, m.NotificationsTotal, m.SlowClientsEvicted)
	return m
}
