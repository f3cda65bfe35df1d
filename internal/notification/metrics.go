package notification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the dispatcher queue and delivery outcomes.
type Metrics struct {
	Enqueued     prometheus.Counter
	Dropped      prometheus.Counter
	Delivered    *prometheus.CounterVec
	Failed       *prometheus.CounterVec
	BreakerState prometheus.Gauge
}

// NewMetrics registers the notification metrics with reg; nil leaves them
// unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Enqueued: f.NewCounter(prometheus.CounterOpts{
			Name: "boxinator_notifications_enqueued_total",
			Help: "Notifications accepted into the dispatch buffer",
		}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "boxinator_notifications_dropped_total",
			Help: "Buffered notifications discarded because the buffer was full",
		}),
		Delivered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "boxinator_notifications_delivered_total",
			Help: "Notifications handed to a sender, by sender (primary or fallback)",
		}, []string{"sender"}),
		Failed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "boxinator_notifications_failed_total",
			Help: "Notification send failures, by sender",
		}, []string{"sender"}),
		BreakerState: f.NewGauge(prometheus.GaugeOpts{
			Name: "boxinator_notification_breaker_open",
			Help: "1 while the primary sender's circuit breaker is open",
		}),
	}
}

func (m *Metrics) incEnqueued() {
	if m != nil {
		m.Enqueued.Inc()
	}
}

func (m *Metrics) incDropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}

func (m *Metrics) incDelivered(sender string) {
	if m != nil {
		m.Delivered.WithLabelValues(sender).Inc()
	}
}

func (m *Metrics) incFailed(sender string) {
	if m != nil {
		m.Failed.WithLabelValues(sender).Inc()
	}
}

func (m *Metrics) setBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerState.Set(1)
		return
	}
	m.BreakerState.Set(0)
}
