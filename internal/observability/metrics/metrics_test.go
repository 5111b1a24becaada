package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/wolfman30/replyflow/internal/llm"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestRelayMetricsCounters(t *testing.T) {
	m := NewRelayMetrics(prometheus.NewRegistry())

	m.ObserveInbound("cloud", InboundAccepted)
	m.ObserveInbound("cloud", InboundAccepted)
	m.ObserveInbound("cloud", InboundIgnored)
	m.ObserveGeneration("anthropic", llm.KindNone, 1, time.Second)
	m.ObserveGeneration("anthropic", llm.KindRateLimited, 2, 21*time.Second)
	m.ObservePublish("cloud", false)

	if got := counterValue(t, m.inboundTotal.WithLabelValues("cloud", InboundAccepted)); got != 2 {
		t.Fatalf("expected 2 accepted, got %v", got)
	}
	if got := counterValue(t, m.generationTotal.WithLabelValues("anthropic", "ok")); got != 1 {
		t.Fatalf("expected 1 ok generation, got %v", got)
	}
	if got := counterValue(t, m.generationTotal.WithLabelValues("anthropic", "rate_limited")); got != 1 {
		t.Fatalf("expected 1 rate limited generation, got %v", got)
	}
	if got := counterValue(t, m.publishTotal.WithLabelValues("cloud", "failed")); got != 1 {
		t.Fatalf("expected 1 failed publish, got %v", got)
	}
}

func TestRelayMetricsRelayHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRelayMetrics(reg)
	m.ObserveRelay(1, true, false, 1.5)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "replyflow_relay_latency_seconds" {
			continue
		}
		if got := mf.GetMetric()[0].GetHistogram().GetSampleCount(); got != 1 {
			t.Fatalf("expected one sample, got %d", got)
		}
		return
	}
	t.Fatalf("relay latency histogram not registered")
}

func TestRelayMetricsNilSafe(t *testing.T) {
	var m *RelayMetrics
	m.ObserveInbound("cloud", InboundIgnored)
	m.ObserveGeneration("gemini", llm.KindTransient, 2, time.Second)
	m.ObservePublish("wati", true)
	m.ObserveRelay(1, true, true, 0.1)
}
