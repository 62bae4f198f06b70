package replay

import (
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/papercomputeco/claudekit/pkg/logger"
	"github.com/papercomputeco/claudekit/pkg/transcript"
)

// Server replays transcripts from a store.
type Server struct {
	config  Config
	store   *transcript.Store
	logger  *slog.Logger
	metrics *metrics
	app     *fiber.App
}

// NewServer creates a replay server. Metrics are registered with reg and
// exposed at /metrics together with everything else reg gathers.
func NewServer(config Config, store *transcript.Store, reg *prometheus.Registry, l *slog.Logger) *Server {
	if l == nil {
		l = logger.Nop()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:  config,
		store:   store,
		logger:  l,
		metrics: newMetrics(reg),
		app:     app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/transcripts", s.handleListTranscripts)
	app.Post("/v1/messages", s.handleMessages)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return s
}

// App exposes the fiber app, for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the replay server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting replay server",
		"listen", s.config.ListenAddr,
		"transcripts", s.store.Dir(),
		"delay", s.config.Delay,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the replay server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
