package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for digital ID operations. All methods
// are safe on a nil receiver so tests can skip registration.
type Metrics struct {
	Issued              prometheus.Counter
	Verifications       *prometheus.CounterVec
	Updates             *prometheus.CounterVec
	RejectedUpdateKeys  prometheus.Counter
	Deactivated         prometheus.Counter
	PersistenceFailures *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Issued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "safepilgrim_digitalid_issued_total",
			Help: "Total number of digital IDs issued",
		}),
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "safepilgrim_digitalid_verifications_total",
			Help: "Total number of verification requests by level",
		}, []string{"level"}),
		Updates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "safepilgrim_digitalid_updates_total",
			Help: "Total number of update requests, by whether an issued record was found",
		}, []string{"linkage"}),
		RejectedUpdateKeys: promauto.NewCounter(prometheus.CounterOpts{
			Name: "safepilgrim_digitalid_rejected_update_keys_total",
			Help: "Total number of update keys ignored because they are unknown or mistyped",
		}),
		Deactivated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "safepilgrim_digitalid_deactivated_total",
			Help: "Total number of digital IDs deactivated",
		}),
		PersistenceFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "safepilgrim_digitalid_persistence_failures_total",
			Help: "Total number of record store failures by operation",
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncIssued() {
	if m == nil {
		return
	}
	m.Issued.Inc()
}

func (m *Metrics) IncVerification(level string) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(level).Inc()
}

func (m *Metrics) IncUpdate(linkage string) {
	if m == nil {
		return
	}
	m.Updates.WithLabelValues(linkage).Inc()
}

func (m *Metrics) AddRejectedUpdateKeys(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RejectedUpdateKeys.Add(float64(n))
}

func (m *Metrics) IncDeactivated() {
	if m == nil {
		return
	}
	m.Deactivated.Inc()
}

func (m *Metrics) IncPersistenceFailure(operation string) {
	if m == nil {
		return
	}
	m.PersistenceFailures.WithLabelValues(operation).Inc()
}
