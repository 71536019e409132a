package fetcher

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/helix-tools/stac-sdk-go/types"
)

// Metrics counts traversal progress. A nil *Metrics records nothing.
type Metrics struct {
	units *prometheus.CounterVec
	pages prometheus.Counter
}

// NewMetrics creates the traversal counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		units: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stac_client_units_total",
				Help: "Total number of traversal units by kind and status",
			},
			[]string{"kind", "status"},
		),
		pages: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stac_client_pages_total",
				Help: "Total number of item pages requested",
			},
		),
	}

	reg.MustRegister(m.units, m.pages)

	return m
}

func (m *Metrics) observe(o types.Outcome) {
	if m == nil {
		return
	}

	m.units.WithLabelValues(string(o.Kind), string(o.Status)).Inc()
}

func (m *Metrics) pageRequested() {
	if m == nil {
		return
	}

	m.pages.Inc()
}
