package posts

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/okayama-voice/opinion-map/internal/config"
	"github.com/okayama-voice/opinion-map/internal/logger"
	"github.com/okayama-voice/opinion-map/internal/metrics"
	"github.com/okayama-voice/opinion-map/internal/middleware"
	"github.com/okayama-voice/opinion-map/internal/utils"
)

// Handler serves the post endpoints.
type Handler struct {
	Store   Store
	Placer  *Placer
	Config  config.Config
	Answers AnswerLookup
	// Limiter throttles writes per client. Nil disables throttling.
	Limiter *middleware.RateLimiter
	// AnswerRoutes is mounted at /{id}/answer when set.
	AnswerRoutes http.Handler
	// Jitter feeds marker placement for posts without coordinates.
	Jitter func() float64
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func postID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) clientHash(r *http.Request) string {
	id, ok := utils.GetClientIDFromContext(r.Context())
	if !ok {
		return ""
	}
	return utils.HashClientID(id)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "Post not found", http.StatusNotFound)
	case errors.Is(err, ErrAlreadyLiked):
		http.Error(w, "already liked", http.StatusConflict)
	default:
		logger.For("posts").Error(op+" failed", "path", r.URL.Path, "err", err)
		http.Error(w, "DB error", http.StatusInternalServerError)
	}
}

// ListPosts serves the sidebar: ?category=<name[,name...]|all>&sort=<newest|likes|comments>.
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	list, err := h.Store.List(r.Context(), ParseCategories(category))
	if err != nil {
		h.writeError(w, r, "list posts", err)
		return
	}
	writeJSON(w, http.StatusOK, BuildSidebar(list, category, r.URL.Query().Get("sort"), h.Config))
}

// ListMarkers serves the pins of every post, optionally limited by
// ?category=a,b.
func (h *Handler) ListMarkers(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.List(r.Context(), ParseCategories(r.URL.Query().Get("category")))
	if err != nil {
		h.writeError(w, r, "list markers", err)
		return
	}
	writeJSON(w, http.StatusOK, Markers(list, h.Config, h.Jitter))
}

type createdPost struct {
	Post
	Region string `json:"region"`
}

func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var in NewPost
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := in.Validate(h.Config); err != nil {
		h.writeError(w, r, "create post", err)
		return
	}

	post := h.Placer.Place(in)
	if err := h.Store.Create(r.Context(), &post); err != nil {
		h.writeError(w, r, "create post", err)
		return
	}
	metrics.PostsCreatedTotal.WithLabelValues(strconv.FormatBool(post.HasRegion)).Inc()
	logger.For("posts").Info("post created", "id", post.ID, "has_region", post.HasRegion, "region", RegionLabel(post))

	writeJSON(w, http.StatusCreated, createdPost{Post: post, Region: RegionLabel(post)})
}

type postDetail struct {
	Post
	Region  string      `json:"region"`
	Replies []Reply     `json:"replies"`
	Answer  *AnswerView `json:"answer"`
	Liked   bool        `json:"liked"`
}

func (h *Handler) loadDetail(r *http.Request, id int64) (postDetail, error) {
	ctx := r.Context()
	post, err := h.Store.Get(ctx, id)
	if err != nil {
		return postDetail{}, err
	}
	replies, err := h.Store.Replies(ctx, id)
	if err != nil {
		return postDetail{}, err
	}

	d := postDetail{Post: post, Region: RegionLabel(post), Replies: replies}
	if h.Answers != nil {
		a, err := h.Answers.Lookup(ctx, id)
		if err != nil {
			logger.For("posts").Warn("answer lookup failed", "post_id", id, "err", err)
		}
		d.Answer = a
	}
	if hash := h.clientHash(r); hash != "" {
		d.Liked, _ = h.Store.HasLiked(ctx, id, hash)
	}
	return d, nil
}

func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		http.Error(w, "Invalid post id", http.StatusBadRequest)
		return
	}
	d, err := h.loadDetail(r, id)
	if err != nil {
		h.writeError(w, r, "get post", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) GetPopup(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		http.Error(w, "Invalid post id", http.StatusBadRequest)
		return
	}
	d, err := h.loadDetail(r, id)
	if err != nil {
		h.writeError(w, r, "get popup", err)
		return
	}
	html, err := RenderPopup(d.Post, d.Replies, d.Answer, d.Liked)
	if err != nil {
		h.writeError(w, r, "render popup", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(html))
}

func (h *Handler) ListReplies(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		http.Error(w, "Invalid post id", http.StatusBadRequest)
		return
	}
	if _, err := h.Store.Get(r.Context(), id); err != nil {
		h.writeError(w, r, "list replies", err)
		return
	}
	replies, err := h.Store.Replies(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "list replies", err)
		return
	}
	writeJSON(w, http.StatusOK, replies)
}

func (h *Handler) CreateReply(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		http.Error(w, "Invalid post id", http.StatusBadRequest)
		return
	}
	var in NewReply
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := in.Validate(); err != nil {
		h.writeError(w, r, "create reply", err)
		return
	}

	reply := Reply{
		ID:          uuid.New(),
		PostID:      id,
		DisplayName: in.DisplayName,
		Content:     in.Content,
		CreatedAt:   time.Now(),
	}
	if err := h.Store.AddReply(r.Context(), &reply); err != nil {
		h.writeError(w, r, "create reply", err)
		return
	}
	metrics.RepliesCreatedTotal.Inc()
	writeJSON(w, http.StatusCreated, reply)
}

func (h *Handler) LikePost(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		http.Error(w, "Invalid post id", http.StatusBadRequest)
		return
	}
	hash := h.clientHash(r)
	if hash == "" {
		http.Error(w, "Client not identified", http.StatusBadRequest)
		return
	}

	likes, err := h.Store.Like(r.Context(), id, hash)
	if err != nil {
		h.writeError(w, r, "like post", err)
		return
	}
	metrics.LikesTotal.Inc()
	writeJSON(w, http.StatusOK, map[string]any{"post_id": id, "likes": likes, "liked": true})
}
