// Package server exposes the retrieval engine over a small HTTP API.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/knograph/knograph/pkg/knograph"
	"github.com/knograph/knograph/pkg/metrics"
)

// Server is the knograph HTTP API server.
type Server struct {
	engine  *knograph.Engine
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server around the given engine. When the engine was
// built with the Prometheus collector, pass it as promMetrics to expose its
// registry at /metrics; nil skips the endpoint.
func New(engine *knograph.Engine, version string, promMetrics *metrics.MetricsCollector) *Server {
	s := &Server{
		engine:  engine,
		version: version,
		started: time.Now(),
	}
	s.routes(promMetrics)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes(promMetrics *metrics.MetricsCollector) {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/context", s.handleContext)
		r.Get("/cache/stats", s.handleCacheStats)
	})

	if promMetrics != nil {
		r.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(promMetrics.Registry(), promhttp.HandlerOpts{}))
	}

	s.router = r
}
