package posts_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okayama-voice/opinion-map/internal/posts"
	"github.com/okayama-voice/opinion-map/internal/regions"
	"github.com/paulmach/orb"
)

// memStore implements posts.Store in memory.
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	posts   map[int64]posts.Post
	replies map[int64][]posts.Reply
	likes   map[int64]map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		posts:   make(map[int64]posts.Post),
		replies: make(map[int64][]posts.Reply),
		likes:   make(map[int64]map[string]bool),
	}
}

func (m *memStore) List(_ context.Context, categories []string) ([]posts.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []posts.Post
	for _, p := range m.posts {
		if len(categories) > 0 {
			match := false
			for _, c := range categories {
				match = match || p.Category == c
			}
			if !match {
				continue
			}
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) Get(_ context.Context, id int64) (posts.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return p, posts.ErrNotFound
	}
	return p, nil
}

func (m *memStore) Create(_ context.Context, p *posts.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	m.posts[p.ID] = *p
	return nil
}

func (m *memStore) Replies(_ context.Context, postID int64) ([]posts.Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]posts.Reply(nil), m.replies[postID]...), nil
}

func (m *memStore) AddReply(_ context.Context, r *posts.Reply) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[r.PostID]
	if !ok {
		return posts.ErrNotFound
	}
	p.CommentsCount++
	m.posts[r.PostID] = p
	m.replies[r.PostID] = append(m.replies[r.PostID], *r)
	return nil
}

func (m *memStore) Like(_ context.Context, postID int64, clientHash string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[postID]
	if !ok {
		return 0, posts.ErrNotFound
	}
	if m.likes[postID] == nil {
		m.likes[postID] = make(map[string]bool)
	}
	if m.likes[postID][clientHash] {
		return p.Likes, posts.ErrAlreadyLiked
	}
	m.likes[postID][clientHash] = true
	p.Likes++
	m.posts[postID] = p
	return p.Likes, nil
}

func (m *memStore) HasLiked(_ context.Context, postID int64, clientHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.likes[postID][clientHash], nil
}

// stubResolver resolves every point inside its box to region.
type stubResolver struct {
	box    orb.Bound
	region regions.Region
}

func (s stubResolver) Resolve(pt orb.Point) (regions.Region, bool) {
	if s.box.Contains(pt) {
		return s.region, true
	}
	return regions.Region{}, false
}

type stubAnswers struct {
	answer *posts.AnswerView
}

func (s stubAnswers) Lookup(context.Context, int64) (*posts.AnswerView, error) {
	return s.answer, nil
}

func (m *memStore) post(id int64) posts.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.posts[id]
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.posts)
}
