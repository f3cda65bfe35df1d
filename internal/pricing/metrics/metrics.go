package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers catalog cache effectiveness and price computations.
type Metrics struct {
	CacheHits      *prometheus.CounterVec
	CacheMisses    *prometheus.CounterVec
	CostsComputed  prometheus.Counter
	PricingChanges *prometheus.CounterVec
}

// New registers the pricing metrics with reg; nil leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "boxinator_catalog_cache_hits_total",
			Help: "Catalog lookups served from Redis",
		}, []string{"kind"}),
		CacheMisses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "boxinator_catalog_cache_misses_total",
			Help: "Catalog lookups that fell through to the store",
		}, []string{"kind"}),
		CostsComputed: f.NewCounter(prometheus.CounterOpts{
			Name: "boxinator_costs_computed_total",
			Help: "Cost breakdowns computed (previews and shipment creation)",
		}),
		PricingChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "boxinator_pricing_changes_total",
			Help: "Administrative pricing mutations by action",
		}, []string{"action"}),
	}
}

func (m *Metrics) RecordCacheHit(kind string) {
	if m != nil {
		m.CacheHits.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) RecordCacheMiss(kind string) {
	if m != nil {
		m.CacheMisses.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncrementCostsComputed() {
	if m != nil {
		m.CostsComputed.Inc()
	}
}

func (m *Metrics) IncrementPricingChange(action string) {
	if m != nil {
		m.PricingChanges.WithLabelValues(action).Inc()
	}
}
