package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"interview-transcript-service/internal/app"
)

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if !application.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	h := &roomHandlers{rooms: application.Rooms}

	// API routes
	r.Route("/v1/rooms", func(r chi.Router) {
		r.Post("/", h.open)
		r.Get("/", h.list)
		r.Route("/{roomID}", func(r chi.Router) {
			r.Delete("/", h.close)
			r.Get("/transcript", h.transcript)
			r.Post("/events", h.pushEvent)
			r.Post("/connection", h.pushConnection)
			r.Get("/ws", h.watch)
		})
	})

	return r
}
