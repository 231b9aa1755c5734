package orchestrator

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewMetricsRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.UtterancesTotal.Inc()
	m.BargeInsTotal.Inc()
	m.ASRLatency.Observe(0.1)
	m.LLMFirstByteLatency.Observe(0.2)
	m.TTSSegmentLatency.Observe(0.3)
	m.ActiveSessions.Set(1)

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(families) != 6 {
		t.Errorf("gathered %d metric families, want 6", len(families))
	}
}

func TestNewMetricsDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	NewMetrics(reg)
}
