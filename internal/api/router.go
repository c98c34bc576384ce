package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/caption-service/backend/internal/api/handlers"
	"github.com/caption-service/backend/internal/api/middleware"
	"github.com/caption-service/backend/internal/auth"
	"github.com/caption-service/backend/internal/config"
	"github.com/caption-service/backend/internal/db"
	"github.com/caption-service/backend/internal/task"
)

func NewRouter(database *db.Database, jwtService *auth.JWTService, cfg *config.Config, manager *task.Manager) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger)
	r.Use(cors.Handler(middleware.CORSHandler(cfg.CORSOrigins)))
	r.Use(middleware.MaxBodySize(64 * 1024)) // JSON-only API

	// Handlers
	authHandler := handlers.NewAuthHandler(database, jwtService)
	captionHandler := handlers.NewCaptionHandler(manager, database)
	adminHandler := handlers.NewAdminHandler(database)

	submitLimiter := middleware.NewRateLimiter(10, time.Minute)

	r.Route("/api", func(r chi.Router) {
		// Public
		r.Get("/health", captionHandler.Health)
		r.Post("/auth/login", authHandler.Login)

		// Captions (consumed by the client app)
		r.With(submitLimiter.Handler).Post("/captions/generate", captionHandler.Generate)
		r.Get("/captions/status/{id}", captionHandler.Status)
		r.Get("/captions/result/{id}", captionHandler.Result)

		// Admin
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(jwtService))

			r.Get("/auth/me", authHandler.Me)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole("admin"))
				r.Get("/tasks", adminHandler.ListTasks)
				r.Get("/tasks/{id}", adminHandler.GetTask)
				r.Delete("/tasks/{id}", adminHandler.DeleteTask)
			})
		})
	})

	return r
}
