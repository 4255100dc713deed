package metrics

import "github.com/prometheus/client_golang/prometheus"

// AgentMetrics exposes counters/histograms for concierge turns.
type AgentMetrics struct {
	turnsTotal     *prometheus.CounterVec
	roundTrips     prometheus.Histogram
	toolCallsTotal *prometheus.CounterVec
	modelLatency   *prometheus.HistogramVec
}

func NewAgentMetrics(reg prometheus.Registerer) *AgentMetrics {
	m := &AgentMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medspa",
			Subsystem: "concierge",
			Name:      "turns_total",
			Help:      "Total conversation turns by final state",
		}, []string{"outcome"}),
		roundTrips: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "medspa",
			Subsystem: "concierge",
			Name:      "turn_round_trips",
			Help:      "Tool round trips used per turn",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 6, 8, 10},
		}),
		toolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medspa",
			Subsystem: "concierge",
			Name:      "tool_calls_total",
			Help:      "Total tool calls dispatched",
		}, []string{"tool", "status"}),
		modelLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "medspa",
			Subsystem: "concierge",
			Name:      "model_call_seconds",
			Help:      "Latency of reasoning service calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.roundTrips, m.toolCallsTotal, m.modelLatency)
	return m
}

func (m *AgentMetrics) ObserveTurn(outcome string, roundTrips int) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(outcome).Inc()
	m.roundTrips.Observe(float64(roundTrips))
}

func (m *AgentMetrics) ObserveToolCall(tool, status string) {
	if m == nil {
		return
	}
	m.toolCallsTotal.WithLabelValues(tool, status).Inc()
}

func (m *AgentMetrics) ObserveModelCall(result string, seconds float64) {
	if m == nil {
		return
	}
	m.modelLatency.WithLabelValues(result).Observe(seconds)
}
