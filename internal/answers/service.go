package answers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/okayama-voice/opinion-map/internal/metrics"
	"github.com/okayama-voice/opinion-map/internal/posts"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists answers.
type Store interface {
	// Find returns the stored answer of a post, or nil when there is none.
	Find(ctx context.Context, postID int64) (*AIResponse, error)
	// Upsert inserts or replaces the answer of a post.
	Upsert(ctx context.Context, a *AIResponse) error
}

// GormStore is the Postgres implementation of Store.
type GormStore struct {
	DB *gorm.DB
}

func (s GormStore) Find(ctx context.Context, postID int64) (*AIResponse, error) {
	var a AIResponse
	err := s.DB.WithContext(ctx).First(&a, "post_id = ?", postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find answer of %d: %w", postID, err)
	}
	return &a, nil
}

func (s GormStore) Upsert(ctx context.Context, a *AIResponse) error {
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "post_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"ai_answer", "sources", "provider", "updated_at"}),
	}).Create(a).Error
	if err != nil {
		return fmt.Errorf("upsert answer of %d: %w", a.PostID, err)
	}
	return nil
}

// Service generates, stores and serves post answers.
type Service struct {
	Store    Store
	Posts    posts.Store
	Provider Provider
	// City is asked about when a post has no city.
	City string
	// Timeout bounds one provider request. Zero means DefaultTimeout.
	Timeout time.Duration

	group singleflight.Group
}

// Lookup returns the stored answer without generating one.
func (s *Service) Lookup(ctx context.Context, postID int64) (*posts.AnswerView, error) {
	a, err := s.Store.Find(ctx, postID)
	if err != nil || a == nil {
		return nil, err
	}
	return a.View(), nil
}

// Get returns the stored answer, generating it first when there is none.
func (s *Service) Get(ctx context.Context, postID int64) (*AIResponse, error) {
	a, err := s.Store.Find(ctx, postID)
	if err != nil {
		return nil, err
	}
	if a != nil {
		return a, nil
	}
	return s.Regenerate(ctx, postID)
}

// DefaultTimeout bounds one shared generation when Service.Timeout is unset.
const DefaultTimeout = 60 * time.Second

// Regenerate asks the provider again and replaces the stored answer.
// Concurrent calls for the same post share one provider request. The shared
// request is detached from any single caller, so a caller that goes away
// gets ctx.Err() while the others still receive the answer.
func (s *Service) Regenerate(ctx context.Context, postID int64) (*AIResponse, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ch := s.group.DoChan(strconv.FormatInt(postID, 10), func() (interface{}, error) {
		genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return s.generate(genCtx, postID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*AIResponse), nil
	}
}

func (s *Service) generate(ctx context.Context, postID int64) (*AIResponse, error) {
	if s.Provider == nil {
		return nil, ErrNoProvider
	}
	post, err := s.Posts.Get(ctx, postID)
	if err != nil {
		return nil, err
	}

	q := QueryFor(post, s.City)
	name := s.Provider.Name()
	LogRequest(name, postID, q.Region())

	start := time.Now()
	res, err := s.Provider.Answer(ctx, q)
	elapsed := time.Since(start)
	metrics.AnswerDurationMs.WithLabelValues(name).Observe(float64(elapsed.Milliseconds()))
	if err != nil {
		metrics.AnswerRequestsTotal.WithLabelValues(name, "error").Inc()
		LogError(name, "answer", err)
		return nil, err
	}
	metrics.AnswerRequestsTotal.WithLabelValues(name, "ok").Inc()
	LogResponse(name, postID, elapsed, len(res.Sources))

	a := &AIResponse{
		ID:       uuid.New(),
		PostID:   postID,
		AIAnswer: res.Answer,
		Sources:  res.Sources,
		Provider: name,
	}
	if a.Sources == nil {
		a.Sources = []posts.Source{}
	}
	if err := s.Store.Upsert(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}
