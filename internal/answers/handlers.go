package answers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/okayama-voice/opinion-map/internal/logger"
	"github.com/okayama-voice/opinion-map/internal/middleware"
	"github.com/okayama-voice/opinion-map/internal/posts"
)

// Handler serves the answer endpoints mounted under /posts/{id}/answer.
type Handler struct {
	Service *Service
	// Limiter throttles regeneration per client. Nil disables throttling.
	Limiter *middleware.RateLimiter
}

type answerOut struct {
	PostID   int64          `json:"post_id"`
	Answer   string         `json:"answer"`
	Sources  []posts.Source `json:"sources"`
	Provider string         `json:"provider,omitempty"`
}

func writeAnswer(w http.ResponseWriter, a *AIResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(answerOut{PostID: a.PostID, Answer: a.AIAnswer, Sources: a.Sources, Provider: a.Provider})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, posts.ErrNotFound):
		http.Error(w, "Post not found", http.StatusNotFound)
	case errors.Is(err, ErrNoProvider):
		http.Error(w, "AI answers are not configured", http.StatusServiceUnavailable)
	case errors.Is(err, ErrProviderFailed):
		http.Error(w, "AI回答取得に失敗", http.StatusBadGateway)
	default:
		logger.For("answers").Error("answer request failed", "err", err)
		http.Error(w, "DB error", http.StatusInternalServerError)
	}
}

func postID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) GetAnswer(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		http.Error(w, "Invalid post id", http.StatusBadRequest)
		return
	}
	a, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeAnswer(w, a)
}

func (h *Handler) RegenerateAnswer(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		http.Error(w, "Invalid post id", http.StatusBadRequest)
		return
	}
	a, err := h.Service.Regenerate(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeAnswer(w, a)
}
