// internal/handlers/router.go
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jason-s-yu/truco/internal/middleware"
	"github.com/sirupsen/logrus"
)

// NewRouter mounts every endpoint of the match service. allowedOrigins
// limits CORS; empty allows any http(s) origin.
func NewRouter(logger *logrus.Logger, gs *GameServer, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"https://*", "http://*"}
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.LogMiddleware(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Route("/user", func(r chi.Router) {
		r.Post("/guest", GuestHandler(gs))
		r.Get("/me", MeHandler(gs))
	})
	r.Route("/game", func(r chi.Router) {
		r.Post("/create", CreateGameHandler(gs))
		r.Get("/active", ActiveGamesHandler(gs))
		r.Get("/{id}/state", GameStateHandler(gs))
		r.Get("/ws/{id}", GameWSHandler(logger, gs))
	})
	return r
}
