// Package server wires HTTP handlers into a chi router for the relay.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Tyrowin/roomrelay/internal/log"
)

// SetupRoutes configures and returns the router with all application routes.
// Anything not matched by an explicit route falls through to the web client.
func SetupRoutes(h *Handlers, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(log.HTTPMiddleware(*log.L()))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)
	r.Get("/ws", h.WebSocket)
	r.Get("/test", h.TestPage)
	r.Get("/uploads/{name}", h.Upload)
	r.NotFound(h.Static)

	return r
}
