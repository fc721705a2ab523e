package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the beer collection metrics.
type Metrics struct {
	BeersCreated      prometheus.Counter
	BeersDeleted      prometheus.Counter
	BeersRejected     prometheus.Counter
	BeersInCollection prometheus.Gauge
}

// New creates and registers the beer metrics on reg (default registry when nil).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		BeersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "taproom_beers_created_total",
			Help: "Total number of beers added to the collection",
		}),
		BeersDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "taproom_beers_deleted_total",
			Help: "Total number of beers removed from the collection",
		}),
		BeersRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "taproom_beers_rejected_total",
			Help: "Total number of beers rejected because no glass matches the volume",
		}),
		BeersInCollection: factory.NewGauge(prometheus.GaugeOpts{
			Name: "taproom_beers_in_collection",
			Help: "Current number of beers in the collection",
		}),
	}
}

func (m *Metrics) IncrementCreated() {
	if m == nil {
		return
	}
	m.BeersCreated.Inc()
}

func (m *Metrics) IncrementDeleted() {
	if m == nil {
		return
	}
	m.BeersDeleted.Inc()
}

func (m *Metrics) IncrementRejected() {
	if m == nil {
		return
	}
	m.BeersRejected.Inc()
}

func (m *Metrics) SetInCollection(count int) {
	if m == nil {
		return
	}
	m.BeersInCollection.Set(float64(count))
}
