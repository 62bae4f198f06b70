package replay

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	// claudekit_replay_requests_total{mode,outcome}
	requests *prometheus.CounterVec

	// claudekit_replay_frames_total
	frames prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "claudekit_replay_requests_total",
				Help: "Replayed Messages requests by mode (stream or message) and outcome",
			},
			[]string{"mode", "outcome"},
		),
		frames: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "claudekit_replay_frames_total",
				Help: "SSE frames written by the replay server",
			},
		),
	}

	reg.MustRegister(m.requests, m.frames)

	return m
}
