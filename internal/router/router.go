package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-token-auth/internal/config"
	"go-token-auth/internal/handler"
	"go-token-auth/internal/middleware"
)

type Handlers struct {
	Auth   *handler.AuthHandler
	Health *handler.HealthHandler
}

// New assembles the HTTP surface. The authentication gate is installed
// ahead of every route, so no handler runs before a request is classified.
func New(cfg *config.Config, gate *middleware.AuthGate, handlers Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(gate.Handler)

	r.Get("/health", handlers.Health.Check)

	r.Route("/auth", func(auth chi.Router) {
		auth.Post("/register", handlers.Auth.Register)
		auth.Post("/login", handlers.Auth.Login)
		auth.With(middleware.RequirePrincipal).Get("/me", handlers.Auth.Me)
	})

	return r
}
