// Package server exposes a local diagnostics HTTP endpoint for the SDK:
// health, status, policy and budget inspection, and a Prometheus scrape
// target when the prometheus metrics exporter is selected. It is meant to
// bind to localhost, there is no authentication.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/genops-ai/genops-go"
	"github.com/genops-ai/genops-go/config"
)

// Server wraps the HTTP listener around a genops client.
type Server struct {
	cfg    config.AdminConfig
	client *genops.Client
	logger *zap.Logger
	srv    *http.Server
}

// New builds the server; call Start to listen.
func New(cfg config.AdminConfig, client *genops.Client, logger *zap.Logger) *Server {
	s := &Server{cfg: cfg, client: client, logger: logger}
	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler builds the route tree. Exposed for tests.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/spend", s.handleSpend)

		r.Route("/policies", func(r chi.Router) {
			r.Get("/", s.handleListPolicies)
			r.Post("/", s.handleRegisterPolicy)
			r.Delete("/{name}", s.handleUnregisterPolicy)
		})

		r.Route("/budgets", func(r chi.Router) {
			r.Get("/", s.handleListBudgets)
			r.Post("/", s.handleSetBudget)
			r.Get("/{name}", s.handleGetBudget)
			r.Post("/{name}/reset", s.handleResetBudget)
		})
	})

	if registry := s.client.Telemetry().PrometheusRegistry(); registry != nil {
		r.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	return r
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("admin server listening", zap.String("addr", s.cfg.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}
	return s.srv.Shutdown(ctx)
}
