// Package api exposes the HTTP surface: event ingestion, rule and plugin
// administration, and operational reads.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/openretail-labs/magpie/internal/ageverify"
	"github.com/openretail-labs/magpie/internal/domain"
	"github.com/openretail-labs/magpie/internal/fraud"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *fraud.Engine, ageStore *ageverify.Store, version string) *Server {
	handler := NewHandler(repo, cache, bus, engine, ageStore, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Event ingestion
	router.Post("/events", handler.PublishEvent)

	// Fraud rule management
	router.Get("/rules", handler.ListRules)
	router.Get("/rules/{id}", handler.GetRule)
	router.Post("/rules", handler.CreateRule)
	router.Post("/rules/reload", handler.ReloadRules)

	// Fraud alerts
	router.Get("/alerts", handler.ListAlerts)
	router.Post("/alerts/{id}/acknowledge", handler.AcknowledgeAlert)

	// Plugin administration
	router.Get("/plugins", handler.ListPlugins)
	router.Put("/plugins/{name}", handler.UpdatePlugin)

	// Basket reads
	router.Get("/baskets/{id}/verification", handler.GetVerification)
	router.Get("/baskets/{id}/recommendations", handler.ListRecommendations)

	// Age violations and timesheets
	router.Get("/violations", handler.ListViolations)
	router.Get("/timesheets/{employeeID}", handler.ListTimeEntries)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
