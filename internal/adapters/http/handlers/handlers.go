// Package handlers agrupa handlers HTTP utilizados para testes e exemplo.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// HealthHandler responde ao health check; nunca passa pelo rate limiter.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// EchoHandler stands in for the marketplace API and reports the matched route.
func EchoHandler(w http.ResponseWriter, r *http.Request) {
	route := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		route = rctx.RoutePattern()
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Request successful",
		"method":  r.Method,
		"route":   route,
	})
}
