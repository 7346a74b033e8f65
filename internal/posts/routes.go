package posts

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/okayama-voice/opinion-map/internal/middleware"
)

// Routes mounts the post endpoints. Writes pass through the client limiter.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.ClientMiddleware)

	r.Get("/", h.ListPosts)
	r.Get("/markers", h.ListMarkers)
	r.Get("/{id}", h.GetPost)
	r.Get("/{id}/popup", h.GetPopup)
	r.Get("/{id}/replies", h.ListReplies)

	r.Group(func(r chi.Router) {
		if h.Limiter != nil {
			r.Use(h.Limiter.Middleware)
		}
		r.Post("/", h.CreatePost)
		r.Post("/{id}/replies", h.CreateReply)
		r.Post("/{id}/like", h.LikePost)
	})

	// Answer routes throttle their own writes.
	if h.AnswerRoutes != nil {
		r.Mount("/{id}/answer", h.AnswerRoutes)
	}

	return r
}

// SetupRoutes mounts the handler built by Init.
func SetupRoutes() http.Handler {
	return handler.Routes()
}
