package client

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/papercomputeco/claudekit/pkg/llm"
	"github.com/papercomputeco/claudekit/pkg/stream"
)

// Metrics holds the client's prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	// claudekit_requests_total{endpoint,status}
	requests *prometheus.CounterVec

	// claudekit_request_duration_seconds{endpoint}
	duration *prometheus.HistogramVec

	// claudekit_retries_total{endpoint}
	retries *prometheus.CounterVec

	// claudekit_stream_events_total{type}
	events *prometheus.CounterVec

	// claudekit_tokens_total{direction}
	tokens *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "claudekit_requests_total",
				Help: "Messages API requests by endpoint and HTTP status",
			},
			[]string{"endpoint", "status"},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "claudekit_request_duration_seconds",
				Help:    "Time until response headers, per attempt",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"endpoint"},
		),

		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "claudekit_retries_total",
				Help: "Retried attempts by endpoint",
			},
			[]string{"endpoint"},
		),

		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "claudekit_stream_events_total",
				Help: "Decoded stream events by type",
			},
			[]string{"type"},
		),

		tokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "claudekit_tokens_total",
				Help: "Tokens reported in response usage",
			},
			[]string{"direction"},
		),
	}

	reg.MustRegister(m.requests, m.duration, m.retries, m.events, m.tokens)
	return m
}

func (m *Metrics) observeRequest(endpoint string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(endpoint, label).Inc()
	m.duration.WithLabelValues(endpoint).Observe(dur.Seconds())
}

func (m *Metrics) observeRetry(endpoint string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(endpoint).Inc()
}

func (m *Metrics) addUsage(u llm.Usage) {
	if m == nil {
		return
	}
	if u.InputTokens > 0 {
		m.tokens.WithLabelValues("input").Add(float64(u.InputTokens))
	}
	if u.OutputTokens > 0 {
		m.tokens.WithLabelValues("output").Add(float64(u.OutputTokens))
	}
	if u.CacheReadInputTokens > 0 {
		m.tokens.WithLabelValues("cache_read").Add(float64(u.CacheReadInputTokens))
	}
	if u.CacheCreationInputTokens > 0 {
		m.tokens.WithLabelValues("cache_creation").Add(float64(u.CacheCreationInputTokens))
	}
}

// observeEvent counts a stream event and picks up usage from message_start
// and message_delta.
func (m *Metrics) observeEvent(ev stream.Event) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(ev.Type()).Inc()

	switch ev := ev.(type) {
	case stream.MessageStart:
		m.addUsage(llm.Usage{
			InputTokens:              ev.Message.Usage.InputTokens,
			CacheReadInputTokens:     ev.Message.Usage.CacheReadInputTokens,
			CacheCreationInputTokens: ev.Message.Usage.CacheCreationInputTokens,
		})
	case stream.MessageDelta:
		m.addUsage(llm.Usage{OutputTokens: ev.Usage.OutputTokens})
	}
}
