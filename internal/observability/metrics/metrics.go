package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConversationMetrics exposes counters/histograms for conversation turns.
type ConversationMetrics struct {
	turnsTotal         *prometheus.CounterVec
	turnDuration       *prometheus.HistogramVec
	classifierFallback *prometheus.CounterVec
	backendSoftFails   *prometheus.CounterVec
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicai",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Total processed conversation turns",
		}, []string{"role", "intent", "status"}),
		turnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinicai",
			Subsystem: "conversation",
			Name:      "turn_duration_seconds",
			Help:      "End-to-end latency of a conversation turn",
			Buckets:   prometheus.DefBuckets,
		}, []string{"role"}),
		classifierFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicai",
			Subsystem: "intent",
			Name:      "classifier_fallback_total",
			Help:      "Classifications degraded to unknown",
		}, []string{"reason"}),
		backendSoftFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicai",
			Subsystem: "backend",
			Name:      "soft_failures_total",
			Help:      "Backend sub-fetches that failed and were recovered per-call",
		}, []string{"fetch"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.turnDuration, m.classifierFallback, m.backendSoftFails)
	return m
}

func (m *ConversationMetrics) ObserveTurn(role, intent, status string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(role, intent, status).Inc()
	m.turnDuration.WithLabelValues(role).Observe(seconds)
}

func (m *ConversationMetrics) ObserveClassifierFallback(reason string) {
	if m == nil {
		return
	}
	m.classifierFallback.WithLabelValues(reason).Inc()
}

func (m *ConversationMetrics) ObserveBackendSoftFailure(fetch string) {
	if m == nil {
		return
	}
	m.backendSoftFails.WithLabelValues(fetch).Inc()
}
