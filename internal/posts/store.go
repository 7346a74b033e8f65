package posts

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists posts, replies and likes.
type Store interface {
	// List returns posts newest first, limited to categories when non-empty.
	List(ctx context.Context, categories []string) ([]Post, error)
	Get(ctx context.Context, id int64) (Post, error)
	Create(ctx context.Context, p *Post) error
	// Replies returns the replies of a post oldest first.
	Replies(ctx context.Context, postID int64) ([]Reply, error)
	// AddReply stores a reply and bumps the post's comment count together.
	AddReply(ctx context.Context, r *Reply) error
	// Like records one like per client hash and returns the new like count.
	Like(ctx context.Context, postID int64, clientHash string) (int, error)
	HasLiked(ctx context.Context, postID int64, clientHash string) (bool, error)
}

// GormStore is the Postgres implementation of Store.
type GormStore struct {
	DB *gorm.DB
}

func (s GormStore) List(ctx context.Context, categories []string) ([]Post, error) {
	var list []Post
	q := s.DB.WithContext(ctx).Order("created_at DESC")
	if len(categories) > 0 {
		q = q.Where("category = ANY(?)", pq.Array(categories))
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return list, nil
}

func (s GormStore) Get(ctx context.Context, id int64) (Post, error) {
	var p Post
	err := s.DB.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p, ErrNotFound
	}
	if err != nil {
		return p, fmt.Errorf("get post %d: %w", id, err)
	}
	return p, nil
}

func (s GormStore) Create(ctx context.Context, p *Post) error {
	if err := s.DB.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

func (s GormStore) Replies(ctx context.Context, postID int64) ([]Reply, error) {
	var list []Reply
	if err := s.DB.WithContext(ctx).Where("post_id = ?", postID).Order("created_at ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list replies of %d: %w", postID, err)
	}
	return list, nil
}

func (s GormStore) AddReply(ctx context.Context, r *Reply) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Post{}).Where("id = ?", r.PostID).
			UpdateColumn("comments_count", gorm.Expr("comments_count + 1"))
		if res.Error != nil {
			return fmt.Errorf("bump comments_count: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Create(r).Error; err != nil {
			return fmt.Errorf("create reply: %w", err)
		}
		return nil
	})
}

func (s GormStore) Like(ctx context.Context, postID int64, clientHash string) (int, error) {
	var likes int
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p Post
		if err := tx.Select("id").First(&p, "id = ?", postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&Like{PostID: postID, ClientHash: clientHash})
		if res.Error != nil {
			return fmt.Errorf("record like: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyLiked
		}

		if err := tx.Model(&Post{}).Where("id = ?", postID).
			UpdateColumn("likes", gorm.Expr("likes + 1")).Error; err != nil {
			return fmt.Errorf("bump likes: %w", err)
		}
		return tx.Model(&Post{}).Select("likes").Where("id = ?", postID).Scan(&likes).Error
	})
	return likes, err
}

func (s GormStore) HasLiked(ctx context.Context, postID int64, clientHash string) (bool, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&Like{}).
		Where("post_id = ? AND client_hash = ?", postID, clientHash).Count(&n).Error
	return n > 0, err
}
