package orchestrator

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the process-wide instrumentation surface for the
// orchestrator. Metrics collection itself is out of scope (spec §1
// Non-goals list the sink/dashboard side); these are the counters and
// histograms a deployment wires into whatever collector it runs.
type Metrics struct {
	UtterancesTotal   prometheus.Counter
	BargeInsTotal     prometheus.Counter
	ASRLatency        prometheus.Histogram
	LLMFirstByteLatency prometheus.Histogram
	TTSSegmentLatency prometheus.Histogram
	ActiveSessions    prometheus.Gauge
}

// NewMetrics registers the orchestrator's collectors against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		UtterancesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orchestrator_utterances_total",
			Help: "Utterances handed to the pipeline.",
		}),
		BargeInsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orchestrator_barge_ins_total",
			Help: "Times a session barged in on its own in-flight response.",
		}),
		ASRLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "orchestrator_asr_latency_seconds",
			Help:    "Speech-to-text call latency.",
			Buckets: prometheus.DefBuckets,
		}),
		LLMFirstByteLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "orchestrator_llm_first_byte_latency_seconds",
			Help:    "Time from turn start to first LLM content chunk.",
			Buckets: prometheus.DefBuckets,
		}),
		TTSSegmentLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "orchestrator_tts_segment_latency_seconds",
			Help:    "Time to synthesize one dispatched segment.",
			Buckets: prometheus.DefBuckets,
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orchestrator_active_sessions",
			Help: "Currently open voice-dialogue sessions.",
		}),
	}
	reg.MustRegister(m.UtterancesTotal, m.BargeInsTotal, m.ASRLatency, m.LLMFirstByteLatency, m.TTSSegmentLatency, m.ActiveSessions)
	return m
}
