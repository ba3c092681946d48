// Package metrics wires the process's Prometheus registry: scheduler cycle
// counters, probe latency, per-target up/down gauges, and notification
// delivery counters, all exposed over /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every collector the monitor publishes. A single instance
// is constructed at startup and threaded into the scheduler, persister, and
// alert evaluator.
type Registry struct {
	CyclesTotal      *prometheus.CounterVec
	ProbeLatency     *prometheus.HistogramVec
	TargetUp         *prometheus.GaugeVec
	NotificationsSent *prometheus.CounterVec
	EventsTotal      *prometheus.CounterVec
}

// NewRegistry registers every collector against reg and returns the handle
// used to record observations. Passing prometheus.NewRegistry() keeps tests
// isolated from the global default registry.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		CyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sitewatch",
			Subsystem: "scheduler",
			Name:      "cycles_total",
			Help:      "Completed probe cycles, partitioned by instance and outcome.",
		}, []string{"instance_id", "outcome"}),

		ProbeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sitewatch",
			Subsystem: "probe",
			Name:      "latency_seconds",
			Help:      "End-to-end probe duration by stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),

		TargetUp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sitewatch",
			Subsystem: "target",
			Name:      "up",
			Help:      "1 if the target's last known state is up, 0 otherwise.",
		}, []string{"target_id"}),

		NotificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sitewatch",
			Subsystem: "alert",
			Name:      "notifications_sent_total",
			Help:      "Notification delivery attempts, partitioned by channel and result.",
		}, []string{"channel", "result"}),

		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sitewatch",
			Subsystem: "alert",
			Name:      "events_total",
			Help:      "Alert events appended to the audit log, partitioned by type.",
		}, []string{"type"}),
	}
}

// ObserveCycle records one completed scheduler cycle.
func (r *Registry) ObserveCycle(instanceID, outcome string) {
	r.CyclesTotal.WithLabelValues(instanceID, outcome).Inc()
}

// ObserveProbeLatency records the duration of one probe stage in seconds.
func (r *Registry) ObserveProbeLatency(stage string, seconds float64) {
	r.ProbeLatency.WithLabelValues(stage).Observe(seconds)
}

// SetTargetUp records a target's latest up/down projection.
func (r *Registry) SetTargetUp(targetID string, up bool) {
	v := 0.0
	if up {
		v = 1.0
	}
	r.TargetUp.WithLabelValues(targetID).Set(v)
}

// ObserveNotification records one notification delivery attempt's outcome.
func (r *Registry) ObserveNotification(channel, result string) {
	r.NotificationsSent.WithLabelValues(channel, result).Inc()
}

// ObserveEvent records one audit-log append.
func (r *Registry) ObserveEvent(eventType string) {
	r.EventsTotal.WithLabelValues(eventType).Inc()
}
