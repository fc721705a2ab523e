package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the notification hub and its listeners.
type Metrics struct {
	NotificationsTotal prometheus.Counter
	ListenerFailures   *prometheus.CounterVec
	NotifyDuration     prometheus.Histogram
	ReportsTotal       prometheus.Counter
}

// New registers the notification metrics on reg (default registry when nil).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		NotificationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "taproom_notifications_total",
			Help: "Total number of collection mutations fanned out to listeners",
		}),
		ListenerFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taproom_listener_failures_total",
			Help: "Listener invocations that returned an error or panicked",
		}, []string{"listener"}),
		NotifyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "taproom_notify_duration_seconds",
			Help:    "Time spent running every listener for one notification",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		}),
		ReportsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "taproom_reports_total",
			Help: "Total number of tap contribution reports broadcast",
		}),
	}
}

func (m *Metrics) IncrementNotifications() {
	if m == nil {
		return
	}
	m.NotificationsTotal.Inc()
}

func (m *Metrics) IncrementListenerFailures(listener string) {
	if m == nil {
		return
	}
	m.ListenerFailures.WithLabelValues(listener).Inc()
}

func (m *Metrics) ObserveNotifyDuration(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.NotifyDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) IncrementReports() {
	if m == nil {
		return
	}
	m.ReportsTotal.Inc()
}
