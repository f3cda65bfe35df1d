package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the shipment lifecycle.
type Metrics struct {
	ShipmentsCreated   *prometheus.CounterVec
	StatusTransitions  *prometheus.CounterVec
	ShipmentsDeleted   prometheus.Counter
	TrackingCollisions prometheus.Counter
	CreateDuration     prometheus.Histogram
	UpdateDuration     prometheus.Histogram
}

// New registers the shipment metrics with reg; nil leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	buckets := []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}
	return &Metrics{
		ShipmentsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "boxinator_shipments_created_total",
			Help: "Shipments created, by sender kind (guest or registered)",
		}, []string{"kind"}),
		StatusTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "boxinator_shipment_status_transitions_total",
			Help: "Committed status transitions",
		}, []string{"from", "to"}),
		ShipmentsDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "boxinator_shipments_deleted_total",
			Help: "Shipments deleted by administrators",
		}),
		TrackingCollisions: f.NewCounter(prometheus.CounterOpts{
			Name: "boxinator_tracking_id_collisions_total",
			Help: "Tracking id unique-constraint collisions that triggered a retry",
		}),
		CreateDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "boxinator_create_shipment_duration_seconds",
			Help:    "Duration of CreateShipment operations",
			Buckets: buckets,
		}),
		UpdateDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "boxinator_update_status_duration_seconds",
			Help:    "Duration of UpdateStatus operations",
			Buckets: buckets,
		}),
	}
}

func (m *Metrics) IncrementCreated(kind string) {
	if m != nil {
		m.ShipmentsCreated.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncrementTransition(from, to string) {
	if m != nil {
		m.StatusTransitions.WithLabelValues(from, to).Inc()
	}
}

func (m *Metrics) IncrementDeleted() {
	if m != nil {
		m.ShipmentsDeleted.Inc()
	}
}

func (m *Metrics) IncrementTrackingCollision() {
	if m != nil {
		m.TrackingCollisions.Inc()
	}
}

// ObserveCreate records a CreateShipment duration measured from start.
func (m *Metrics) ObserveCreate(start time.Time) {
	if m != nil {
		m.CreateDuration.Observe(time.Since(start).Seconds())
	}
}

// ObserveUpdate records an UpdateStatus duration measured from start.
func (m *Metrics) ObserveUpdate(start time.Time) {
	if m != nil {
		m.UpdateDuration.Observe(time.Since(start).Seconds())
	}
}
