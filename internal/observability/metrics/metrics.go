// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "voice_call_orchestrator"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Outbound call metrics
	CallsTotal        prometheus.Counter
	CallsActive       prometheus.Gauge
	CallsFailed       *prometheus.CounterVec
	CallAnswerLatency prometheus.Histogram

	// Session metrics
	SessionsCreated       prometheus.Counter
	SessionsDestroyed     prometheus.Counter
	SessionCreateFailures prometheus.Counter

	// Agent metrics
	AgentSessionsActive prometheus.Gauge
	AgentAttachTimeouts prometheus.Counter
	TransfersTotal      *prometheus.CounterVec

	// Presence metrics
	PresencePolls  prometheus.Counter
	PresenceEvents *prometheus.CounterVec

	// Transcript metrics
	TranscriptsPersisted *prometheus.CounterVec

	// Campaign metrics
	CampaignCalls *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		CallsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Total number of outbound call attempts",
		}),
		CallsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calls_active",
			Help:      "Number of call attempts currently in flight",
		}),
		CallsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_failed_total",
			Help:      "Total number of failed call attempts by reason",
		}, []string{"reason"}),
		CallAnswerLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_answer_latency_seconds",
			Help:      "Latency from bridge request to confirmed answer",
			Buckets:   []float64{1, 2, 5, 10, 15, 30, 45, 60},
		}),
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Total number of sessions created",
		}),
		SessionsDestroyed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_destroyed_total",
			Help:      "Total number of sessions destroyed",
		}),
		SessionCreateFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_create_failures_total",
			Help:      "Total number of failed session create calls",
		}),
		AgentSessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agent_sessions_active",
			Help:      "Number of agent session controllers currently running",
		}),
		AgentAttachTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_attach_timeouts_total",
			Help:      "Total number of calls abandoned because the agent never attached",
		}),
		TransfersTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "Total number of transfer-to-human requests by outcome",
		}, []string{"outcome"}),
		PresencePolls: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_polls_total",
			Help:      "Total number of presence snapshot polls",
		}),
		PresenceEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_events_total",
			Help:      "Total number of presence change events by type",
		}, []string{"type"}),
		TranscriptsPersisted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_persisted_total",
			Help:      "Total number of transcript persist attempts by backend and outcome",
		}, []string{"backend", "outcome"}),
		CampaignCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "campaign_calls_total",
			Help:      "Total number of campaign call attempts by status",
		}, []string{"status"}),
		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka publish attempts",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of failed Kafka publishes",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"topic"}),
	}
}

// RecordKafkaPublish records the outcome of one Kafka publish.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, seconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(seconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordAnsweredCall records a successful outbound call.
func (m *Metrics) RecordAnsweredCall(latencySeconds float64) {
	m.CallsTotal.Inc()
	m.CallAnswerLatency.Observe(latencySeconds)
}

// RecordFailedCall records a failed outbound call.
func (m *Metrics) RecordFailedCall(reason string) {
	m.CallsTotal.Inc()
	m.CallsFailed.WithLabelValues(reason).Inc()
}

// RecordTransfer records a transfer-to-human attempt.
func (m *Metrics) RecordTransfer(outcome string) {
	m.TransfersTotal.WithLabelValues(outcome).Inc()
}

// RecordTranscript records a transcript persist attempt.
func (m *Metrics) RecordTranscript(backend string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.TranscriptsPersisted.WithLabelValues(backend, outcome).Inc()
}
