package server

import "github.com/prometheus/client_golang/prometheus"

// Metrics instruments the Broadcast Router's natural measurement points:
// per-outcome SaveUpdate counters, the live checkpoint count, and the
// number of connected clients the router is fanning broadcasts out to.
type Metrics struct {
	updatesTotal     *prometheus.CounterVec
	checkpointsTotal prometheus.Gauge
	connectedClients prometheus.Gauge
}

// NewMetrics registers CWSE's collectors against reg. Pass
// prometheus.NewRegistry() in tests to avoid polluting the default
// registry; pass prometheus.DefaultRegisterer in production.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		updatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cwse",
			Subsystem: "server",
			Name:      "updates_total",
			Help:      "SaveUpdate calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		checkpointsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cwse",
			Subsystem: "server",
			Name:      "checkpoints_total",
			Help:      "Number of checkpoints saved.",
		}),
		connectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cwse",
			Subsystem: "server",
			Name:      "connected_clients",
			Help:      "Number of clients currently registered with the broadcast router.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.updatesTotal, m.checkpointsTotal, m.connectedClients)
	}
	return m
}

func (m *Metrics) observeUpdate(op, outcome string) {
	if m == nil {
		return
	}
	m.updatesTotal.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) setCheckpoints(n int) {
	if m == nil {
		return
	}
	m.checkpointsTotal.Set(float64(n))
}

func (m *Metrics) setConnectedClients(n int) {
	if m == nil {
		return
	}
	m.connectedClients.Set(float64(n))
}
