package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/yberthe/call-triage/internal/config"
	"github.com/yberthe/call-triage/internal/session"
	"github.com/yberthe/call-triage/internal/storage/sqlite"
	"github.com/yberthe/call-triage/pkg/logger"
)

// Router is the API router
type Router struct {
	handler    *Handler
	middleware *Middleware
	config     *config.Config
	logger     *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(orchestrator *session.Orchestrator, reports *sqlite.ReportStorage, cfg *config.Config, log *logger.Logger) *Router {
	return &Router{
		handler:    NewHandler(orchestrator, reports, cfg, log),
		middleware: NewMiddleware(log),
		config:     cfg,
		logger:     log.Named("api-router"),
	}
}

// Routes returns the API routes
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	// Middleware
	router.Use(r.middleware.RequestID)
	router.Use(r.middleware.Logger)
	router.Use(r.middleware.Recoverer)
	router.Use(r.middleware.CORS(r.config.Server.CORSAllowedOrigins))

	// API routes
	router.Route("/api/v1", func(router chi.Router) {
		// Call lifecycle
		router.Post("/calls", r.handler.CreateCall)
		router.Post("/calls/{id}/messages", r.handler.PostMessage)
		router.Delete("/calls/{id}", r.handler.EndCall)

		// Live call channel
		router.Get("/calls/{id}/ws", r.handler.HandleCallSocket)

		// Triage
		router.Get("/calls/{id}/triage", r.handler.GetTriage)
		router.Get("/calls/{id}/reports", r.handler.GetReports)

		// Health check
		router.Get("/health", r.handler.GetHealth)

		// Configuration
		router.Get("/config", r.handler.GetConfig)
	})

	return router
}
