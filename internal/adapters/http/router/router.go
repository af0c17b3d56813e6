// Package router monta as rotas HTTP da aplicação e sua cadeia de middlewares.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/JeanGrijp/pet-rate-limiter/internal/adapters/http/auth"
	"github.com/JeanGrijp/pet-rate-limiter/internal/adapters/http/handlers"
	httpMiddleware "github.com/JeanGrijp/pet-rate-limiter/internal/adapters/http/middleware"
	"github.com/JeanGrijp/pet-rate-limiter/internal/core/ports"
	"github.com/JeanGrijp/pet-rate-limiter/internal/logger"
)

type Deps struct {
	Limiter       ports.RateLimiter
	UploadLimiter ports.ActionLimiter
	// Validator is optional; without it every request is anonymous.
	Validator *auth.Validator
	Gatherer  prometheus.Gatherer
	Logger    zerolog.Logger

	LimiterOptions []httpMiddleware.Option
	UploadOptions  httpMiddleware.ActionOptions
}

// marketplaceRoutes are the API routes served by the demo echo handler.
var marketplaceRoutes = []struct {
	method  string
	pattern string
}{
	{http.MethodPost, "/api/v1/messaging/send"},
	{http.MethodGet, "/api/v1/messaging/conversations/{id}/messages"},
	{http.MethodPost, "/api/v1/messaging/messages/{id}/read"},
	{http.MethodPut, "/api/v1/messaging/messages/{id}/edit"},
	{http.MethodDelete, "/api/v1/messaging/messages/{id}"},
	{http.MethodPost, "/api/v1/messaging/search"},
	{http.MethodPost, "/api/v1/conversations"},
	{http.MethodGet, "/api/v1/conversations"},
	{http.MethodPut, "/api/v1/conversations/{id}"},
	{http.MethodPost, "/api/v1/conversations/{id}/participants"},
	{http.MethodPost, "/api/v1/voice/start-recording"},
	{http.MethodPost, "/api/v1/voice/stop-recording"},
	{http.MethodPost, "/api/v1/notifications/register"},
	{http.MethodGet, "/api/v1/dogs"},
	{http.MethodGet, "/api/v1/dogs/{id}"},
	{http.MethodGet, "/api/v1/providers"},
	{http.MethodPost, "/api/v1/bookings"},
}

var uploadRoutes = []string{"/api/v1/files/upload", "/api/v1/files/upload/multiple"}

func New(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(logger.RequestLogger(deps.Logger))
	if deps.Validator != nil {
		r.Use(auth.NewMiddleware(deps.Validator, deps.Logger))
	}

	limiterOptions := append([]httpMiddleware.Option{httpMiddleware.WithLogger(deps.Logger)}, deps.LimiterOptions...)
	r.Use(httpMiddleware.NewRateLimiterMiddleware(deps.Limiter, limiterOptions...))

	r.Get("/health", handlers.HealthHandler)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	for _, route := range marketplaceRoutes {
		r.MethodFunc(route.method, route.pattern, handlers.EchoHandler)
	}

	uploadOptions := deps.UploadOptions
	if uploadOptions.Logger == nil {
		uploadOptions.Logger = &deps.Logger
	}
	uploads := r.With(httpMiddleware.NewActionRateLimit(deps.UploadLimiter, uploadOptions))
	for _, pattern := range uploadRoutes {
		uploads.Post(pattern, handlers.EchoHandler)
	}

	return r
}
