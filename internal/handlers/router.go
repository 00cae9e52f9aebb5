package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterDeps are the handlers mounted by NewRouter. Nil handlers are skipped.
type RouterDeps struct {
	CORSOrigins  []string
	Presence     *PresenceHandler
	Availability *AvailabilityHandler
	Stories      *StoryHandler
	WebSocket    http.HandlerFunc
}

// NewRouter builds the chi router with the middleware stack and API routes.
func NewRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", HealthCheck)

	r.Route("/api", func(r chi.Router) {
		if deps.Presence != nil {
			r.Post("/heartbeat", deps.Presence.Heartbeat)
			r.Get("/heartbeat", deps.Presence.ListHeartbeats)
		}
		if deps.Availability != nil {
			r.Get("/channels/availability", deps.Availability.CheckAvailability)
		}
		if deps.Stories != nil {
			r.Post("/stories/track", deps.Stories.Track)
			r.Delete("/stories/track/{slot}", deps.Stories.Untrack)
		}
	})

	if deps.WebSocket != nil {
		r.Get("/ws/channels/{name}", deps.WebSocket)
	}

	return r
}
