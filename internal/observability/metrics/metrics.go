package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/replyflow/internal/llm"
)

// Inbound delivery outcomes.
const (
	InboundAccepted  = "accepted"
	InboundIgnored   = "ignored"
	InboundRejected  = "rejected"
	InboundDuplicate = "duplicate"
	InboundThrottled = "throttled"
	InboundFailed    = "failed"
)

// RelayMetrics exposes counters/histograms for the webhook-to-reply flow.
type RelayMetrics struct {
	inboundTotal       *prometheus.CounterVec
	generationTotal    *prometheus.CounterVec
	generationAttempts *prometheus.HistogramVec
	generationLatency  *prometheus.HistogramVec
	publishTotal       *prometheus.CounterVec
	relayLatency       *prometheus.HistogramVec
}

func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	m := &RelayMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "replyflow",
			Subsystem: "webhook",
			Name:      "inbound_messages_total",
			Help:      "Inbound webhook messages by outcome",
		}, []string{"variant", "outcome"}),
		generationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "replyflow",
			Subsystem: "generation",
			Name:      "requests_total",
			Help:      "Generation dispatches by backend and result",
		}, []string{"backend", "result"}),
		generationAttempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "replyflow",
			Subsystem: "generation",
			Name:      "attempts",
			Help:      "Backend calls made per dispatch",
			Buckets:   []float64{0, 1, 2},
		}, []string{"backend"}),
		generationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "replyflow",
			Subsystem: "generation",
			Name:      "latency_seconds",
			Help:      "Wall time of a dispatch including retry backoff",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90},
		}, []string{"backend"}),
		publishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "replyflow",
			Subsystem: "publish",
			Name:      "replies_total",
			Help:      "Outbound reply sends by transport and status",
		}, []string{"transport", "status"}),
		relayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "replyflow",
			Subsystem: "relay",
			Name:      "latency_seconds",
			Help:      "End-to-end relay time from dequeue to publish",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tenant", "delivered", "degraded"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.generationTotal, m.generationAttempts, m.generationLatency, m.publishTotal, m.relayLatency)
	return m
}

func (m *RelayMetrics) ObserveInbound(variant, outcome string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(variant, outcome).Inc()
}

// ObserveGeneration implements llm.Recorder.
func (m *RelayMetrics) ObserveGeneration(backend string, failure llm.FailureKind, attempts int, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if failure != llm.KindNone {
		result = string(failure)
	}
	m.generationTotal.WithLabelValues(backend, result).Inc()
	m.generationAttempts.WithLabelValues(backend).Observe(float64(attempts))
	m.generationLatency.WithLabelValues(backend).Observe(elapsed.Seconds())
}

func (m *RelayMetrics) ObservePublish(transport string, delivered bool) {
	if m == nil {
		return
	}
	status := "delivered"
	if !delivered {
		status = "failed"
	}
	m.publishTotal.WithLabelValues(transport, status).Inc()
}

// ObserveRelay implements conversation.RelayRecorder.
func (m *RelayMetrics) ObserveRelay(tenantID int64, delivered, degraded bool, seconds float64) {
	if m == nil {
		return
	}
	m.relayLatency.WithLabelValues(
		strconv.FormatInt(tenantID, 10),
		strconv.FormatBool(delivered),
		strconv.FormatBool(degraded),
	).Observe(seconds)
}
