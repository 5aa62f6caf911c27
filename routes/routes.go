package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tracegate/llm-proxy/app"
	"github.com/tracegate/llm-proxy/handlers"
	"github.com/tracegate/llm-proxy/middleware"
	"github.com/tracegate/llm-proxy/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	timeout := deps.Config.Server.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	r.Use(chimiddleware.Timeout(timeout))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	// Tracing runs before the request logger so the logger can read the
	// trace ID it stores in the context.
	r.Use(middleware.Tracing)
	if deps.Config.Observability.RequestLogging {
		requestLogger := middleware.NewRequestLogger(deps.Logger)
		r.Use(requestLogger.Log)
	}

	chatHandler := handlers.NewChatCompletionHandler(deps.Proxy, deps.Logger)
	modelsHandler := handlers.NewModelsHandler(deps.Registry, deps.Logger)
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Registry, deps.Langfuse, deps.Logger)
	usageHandler := handlers.NewUsageHandler(deps.Usage, deps.Logger)

	// OpenAI-compatible surface, served with and without the /v1 prefix
	r.Post("/v1/chat/completions", chatHandler.HandleChatCompletion)
	r.Post("/chat/completions", chatHandler.HandleChatCompletion)
	r.Get("/v1/models", modelsHandler.HandleListModels)
	r.Get("/models", modelsHandler.HandleListModels)

	// Operational endpoints
	r.Get("/health", healthHandler.HandleHealth)
	r.Get("/ready", healthHandler.HandleReadiness)
	r.Get("/v1/usage", usageHandler.HandleUsage)

	// Metrics are served here only when no dedicated metrics server runs
	if deps.Config.Observability.MetricsEnabled && deps.Config.Observability.MetricsPort == 0 {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteAPIError(w, http.StatusNotFound, utils.ErrTypeInvalidRequest, "not_found", "endpoint not found")
	})

	return r
}
