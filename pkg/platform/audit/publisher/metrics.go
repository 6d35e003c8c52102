package publisher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	audit "safepilgrim/pkg/platform/audit"
)

// Metrics holds Prometheus metrics for audit publishing.
type Metrics struct {
	Published       *prometheus.CounterVec
	Dropped         prometheus.Counter
	PersistFailures prometheus.Counter
	BufferDepth     prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		Published: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "safepilgrim_audit_published_total",
			Help: "Total number of audit events persisted, by category",
		}, []string{"category"}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "safepilgrim_audit_dropped_total",
			Help: "Total number of audit events dropped because the buffer was full",
		}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "safepilgrim_audit_persist_failures_total",
			Help: "Total number of audit event persistence failures",
		}),
		BufferDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "safepilgrim_audit_buffer_depth",
			Help: "Number of audit events waiting in the async buffer",
		}),
	}
}

func (m *Metrics) IncPublished(category audit.EventCategory) {
	if m == nil {
		return
	}
	if category == "" {
		category = audit.CategoryOperations
	}
	m.Published.WithLabelValues(string(category)).Inc()
}

func (m *Metrics) IncDropped() {
	if m == nil {
		return
	}
	m.Dropped.Inc()
}

func (m *Metrics) IncPersistFailures() {
	if m == nil {
		return
	}
	m.PersistFailures.Inc()
}

func (m *Metrics) SetBufferDepth(n int) {
	if m == nil {
		return
	}
	m.BufferDepth.Set(float64(n))
}
