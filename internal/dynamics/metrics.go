package dynamics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"stdpengine/internal/fixed"
)

// Metrics exports engine activity to prometheus. A nil *Metrics records
// nothing.
type Metrics struct {
	rows             prometheus.Counter
	rowSynapses      prometheus.Histogram
	events           *prometheus.CounterVec
	historyEvictions prometheus.Counter
	ringSaturations  *prometheus.CounterVec
}

// NewMetrics registers the engine metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		rows: factory.NewCounter(prometheus.CounterOpts{
			Name: "stdp_plastic_rows_total",
			Help: "Total plastic rows processed",
		}),
		rowSynapses: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "stdp_plastic_row_synapses",
			Help:    "Plastic synapses per processed row",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stdp_post_history_events_total",
			Help: "Total events appended to post-synaptic histories by kind",
		}, []string{"kind"}), // "spike" or "neuromodulator"
		historyEvictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "stdp_post_history_evictions_total",
			Help: "Total post-synaptic history entries evicted at capacity",
		}),
		ringSaturations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stdp_ring_buffer_saturations_total",
			Help: "Total saturating ring buffer additions by direction",
		}, []string{"direction"}), // "overflow" or "underflow"
	}
}

func (m *Metrics) observeRow(synapses int) {
	if m == nil {
		return
	}
	m.rows.Inc()
	m.rowSynapses.Observe(float64(synapses))
}

func (m *Metrics) observeEvent(kind string, evicted bool) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
	if evicted {
		m.historyEvictions.Inc()
	}
}

func (m *Metrics) observeSaturation(sat fixed.Saturation) {
	if m == nil {
		return
	}
	switch sat {
	case fixed.Overflow:
		m.ringSaturations.WithLabelValues("overflow").Inc()
	case fixed.Underflow:
		m.ringSaturations.WithLabelValues("underflow").Inc()
	}
}
