package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DialogueMetrics exposes counters and histograms for the dialogue pipeline,
// the completion providers and the dispatch workers.
type DialogueMetrics struct {
	turnsTotal      *prometheus.CounterVec
	turnLatency     *prometheus.HistogramVec
	degradedTotal   *prometheus.CounterVec
	bookingsTotal   *prometheus.CounterVec
	llmLatency      *prometheus.HistogramVec
	llmErrorsTotal  *prometheus.CounterVec
	dispatchedTotal *prometheus.CounterVec
}

func NewDialogueMetrics(reg prometheus.Registerer) *DialogueMetrics {
	m := &DialogueMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbot",
			Subsystem: "dialogue",
			Name:      "turns_total",
			Help:      "Handled inbound messages",
		}, []string{"channel", "intent", "outcome"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinicbot",
			Subsystem: "dialogue",
			Name:      "turn_latency_seconds",
			Help:      "End-to-end latency of one handled message",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
		degradedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbot",
			Subsystem: "dialogue",
			Name:      "degraded_total",
			Help:      "Collaborator failures absorbed by the pipeline",
		}, []string{"stage", "reason"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbot",
			Subsystem: "dialogue",
			Name:      "bookings_total",
			Help:      "Booking attempts by final state",
		}, []string{"state"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinicbot",
			Subsystem: "llm",
			Name:      "completion_latency_seconds",
			Help:      "Latency of completion calls",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"provider"}),
		llmErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbot",
			Subsystem: "llm",
			Name:      "completion_errors_total",
			Help:      "Failed completion calls",
		}, []string{"provider"}),
		dispatchedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbot",
			Subsystem: "dispatch",
			Name:      "jobs_total",
			Help:      "Queued messages processed by workers",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.turnLatency, m.degradedTotal, m.bookingsTotal, m.llmLatency, m.llmErrorsTotal, m.dispatchedTotal)
	return m
}

func (m *DialogueMetrics) ObserveTurn(channel, intent, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if intent == "" {
		intent = "none"
	}
	m.turnsTotal.WithLabelValues(channel, intent, outcome).Inc()
	m.turnLatency.WithLabelValues(channel).Observe(elapsed.Seconds())
}

func (m *DialogueMetrics) ObserveDegraded(stage, reason string) {
	if m == nil {
		return
	}
	m.degradedTotal.WithLabelValues(stage, reason).Inc()
}

func (m *DialogueMetrics) ObserveBooking(state string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(state).Inc()
}

func (m *DialogueMetrics) ObserveCompletion(provider string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.llmLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
	if err != nil {
		m.llmErrorsTotal.WithLabelValues(provider).Inc()
	}
}

func (m *DialogueMetrics) ObserveDispatch(status string) {
	if m == nil {
		return
	}
	m.dispatchedTotal.WithLabelValues(status).Inc()
}
