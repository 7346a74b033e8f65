package answers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes expects to be mounted below a route that captures {id}.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.GetAnswer)
	r.Group(func(r chi.Router) {
		if h.Limiter != nil {
			r.Use(h.Limiter.Middleware)
		}
		r.Post("/regenerate", h.RegenerateAnswer)
	})
	return r
}

// SetupRoutes mounts the handler built by Init.
func SetupRoutes() http.Handler {
	return (&Handler{Service: service, Limiter: regenerateLimiter}).Routes()
}
