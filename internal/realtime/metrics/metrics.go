package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the websocket connection metrics.
type Metrics struct {
	Connections     prometheus.Gauge
	MessagesSent    prometheus.Counter
	MessagesDropped prometheus.Counter
}

// New registers the realtime metrics on reg (default registry when nil).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "taproom_ws_connections",
			Help: "Current number of live websocket connections",
		}),
		MessagesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "taproom_ws_messages_sent_total",
			Help: "Messages queued for delivery to a websocket connection",
		}),
		MessagesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "taproom_ws_messages_dropped_total",
			Help: "Messages dropped because a connection's send queue was full or closed",
		}),
	}
}

func (m *Metrics) SetConnections(n int) {
	if m == nil {
		return
	}
	m.Connections.Set(float64(n))
}

func (m *Metrics) IncrementSent() {
	if m == nil {
		return
	}
	m.MessagesSent.Inc()
}

func (m *Metrics) IncrementDropped() {
	if m == nil {
		return
	}
	m.MessagesDropped.Inc()
}
