package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouteOptions carries the pieces of the router that come from config
type RouteOptions struct {
	CORSAllowedOrigins []string
	RequestTimeout     time.Duration
	// MetricsHandler is mounted at /metrics when set
	MetricsHandler http.Handler
}

func (h *Handler) Routes(m *Middleware, opts RouteOptions) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(m.RequestID)
	r.Use(m.RequestLogger)
	r.Use(m.Recoverer)
	r.Use(m.SecurityHeaders)
	r.Use(m.Compress)
	if opts.RequestTimeout > 0 {
		r.Use(m.Timeout(opts.RequestTimeout))
	}
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(m.CORS(opts.CORSAllowedOrigins))

	// Health endpoints
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/boards", func(r chi.Router) {
			r.Get("/", h.ListPosts)
			r.Post("/", h.CreatePost)
			r.Get("/{id}", h.GetPost)
			r.Put("/{id}", h.UpdatePost)
			r.Delete("/{id}", h.DeletePost)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/sync", h.GetSyncStatus)
			r.Post("/sync", h.TriggerSync)
		})
	})

	return r
}
