package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the verification pipeline.
type Metrics struct {
	VerificationsTotal   *prometheus.CounterVec
	RegistryCallDuration *prometheus.HistogramVec
	QueueDepth           prometheus.Gauge
	ActiveWorkers        prometheus.Gauge
	QueueRejections      prometheus.Counter
	AuditWriteFailures   prometheus.Counter
	AlertsGenerated      *prometheus.CounterVec
}

// New creates and registers all pipeline metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers metrics on the given registerer so tests can isolate.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		VerificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kycflow_verifications_total",
			Help: "Verification attempts by identity kind and result.",
		}, []string{"kind", "result"}),
		RegistryCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kycflow_registry_call_seconds",
			Help:    "Outbound registry call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kycflow_queue_depth",
			Help: "Pending items in the verification queue.",
		}),
		ActiveWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kycflow_active_workers",
			Help: "Verifications currently in flight.",
		}),
		QueueRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "kycflow_queue_rejections_total",
			Help: "Enqueue attempts rejected because the queue was full.",
		}),
		AuditWriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "kycflow_audit_write_failures_total",
			Help: "Audit sink writes that failed and were dropped.",
		}),
		AlertsGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kycflow_alerts_generated_total",
			Help: "Alerts raised by the health and budget monitor.",
		}, []string{"type"}),
	}
}

// ObserveRegistryCall records one outbound call's latency.
func (m *Metrics) ObserveRegistryCall(provider string, d time.Duration) {
	if m == nil {
		return
	}
	m.RegistryCallDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// CountVerification records a finished verification attempt.
func (m *Metrics) CountVerification(kind, result string) {
	if m == nil {
		return
	}
	m.VerificationsTotal.WithLabelValues(kind, result).Inc()
}
