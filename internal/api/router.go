package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/clipforge/internal/api/auth"
	"github.com/good-yellow-bee/clipforge/internal/api/middleware"
	"github.com/good-yellow-bee/clipforge/internal/api/projects"
	"github.com/good-yellow-bee/clipforge/internal/api/session"
	"github.com/good-yellow-bee/clipforge/internal/api/usage"
	"github.com/good-yellow-bee/clipforge/internal/api/users"
)

// setupRouter creates and configures the chi router with all routes.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()
	store := s.deps.Storage

	// Global middleware
	r.Use(middleware.RequestLogger(s.config.Verbose))
	r.Use(middleware.PrometheusMiddleware)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recoverer)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		authHandler := auth.NewHandler(store.Users(), s.jwt, s.tokens, s.lockout)

		r.Route("/auth", func(r chi.Router) {
			// Public routes with IP rate limiting
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitByIP(s.ipLimiter))
				r.Post("/login", authHandler.Login)
				r.Post("/refresh", authHandler.Refresh)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.JWTAuth(s.jwt))
				r.Post("/logout", authHandler.Logout)
			})
		})

		// Everything below requires an identity.
		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTAuth(s.jwt))
			r.Use(middleware.RateLimitByUser(s.userLimiter))

			userHandler := users.NewHandler(store.Users(), store.Profiles(), store.Tokens(), s.deps.Tracker)
			r.Route("/users", func(r chi.Router) {
				r.Get("/me", userHandler.GetCurrentUser)
				r.Put("/me/password", userHandler.ChangePassword)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireAdmin)
					r.Get("/", userHandler.List)
					r.Post("/", userHandler.Create)
					r.Put("/{id}/tier", userHandler.SetTier)
					r.Delete("/{id}", userHandler.Delete)
				})
			})

			projectHandler := projects.NewHandler(store.Projects(), s.deps.Sessions, s.deps.Resolver)
			sessionHandler := session.NewHandler(s.deps.Sessions, s.deps.Resolver)
			r.Route("/projects", func(r chi.Router) {
				r.Get("/", projectHandler.List)
				r.Post("/", projectHandler.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", projectHandler.Get)
					r.Delete("/", projectHandler.Delete)
					r.Get("/render", projectHandler.Render)
					r.Post("/session", sessionHandler.Open)
				})
			})

			r.Route("/session", func(r chi.Router) {
				r.Get("/", sessionHandler.Get)
				r.Delete("/", sessionHandler.Close)
				r.Post("/elements", sessionHandler.AddElement)
				r.Put("/elements/{elementID}", sessionHandler.UpdateElement)
				r.Delete("/elements/{elementID}", sessionHandler.RemoveElement)
				r.Put("/settings", sessionHandler.UpdateSettings)
				r.Get("/render", sessionHandler.Render)
			})

			usageHandler := usage.NewHandler(s.deps.Tracker, store.Objects())
			r.Get("/quota", usageHandler.Summary)
			r.Post("/generations", usageHandler.Generate)
			r.Post("/uploads/check", usageHandler.CheckUpload)
			r.Post("/uploads", usageHandler.Upload)
		})
	})

	// Health checks (public, no rate limit)
	r.Get("/health", s.healthHandler.Health)
	r.Get("/health/live", s.healthHandler.Live)
	r.Get("/health/ready", s.healthHandler.Ready)

	return r
}
