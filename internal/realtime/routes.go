package realtime

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SetupRoutes serves the websocket endpoint at the mount point.
func SetupRoutes(s *Server) http.Handler {
	r := chi.NewRouter()
	r.Get("/", s.ServeHTTP)
	return r
}
