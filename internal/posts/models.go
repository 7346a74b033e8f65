package posts

import (
	"time"

	"github.com/google/uuid"
)

// Post is a located opinion. The region columns are written once when the
// post is created and never updated.
type Post struct {
	ID            int64     `gorm:"primaryKey" json:"id"`
	Lat           *float64  `json:"lat"`
	Lng           *float64  `json:"lng"`
	DisplayName   string    `gorm:"not null" json:"display_name"`
	Content       string    `gorm:"not null" json:"content"`
	Category      string    `gorm:"index" json:"category"`
	AgeGroup      string    `json:"age_group"`
	Gender        string    `json:"gender"`
	HasRegion     bool      `json:"has_region"`
	CityName      *string   `json:"city_name"`
	WardName      *string   `json:"ward_name"`
	ChomeName     *string   `json:"chome_name"`
	Likes         int       `gorm:"default:0" json:"likes"`
	CommentsCount int       `gorm:"default:0" json:"comments_count"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

type Reply struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PostID      int64     `gorm:"index;not null" json:"post_id"`
	DisplayName string    `gorm:"not null" json:"display_name"`
	Content     string    `gorm:"not null" json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

// Like records that a client endorsed a post. ClientHash is a blake2b digest
// of the client token; the raw token is never stored.
type Like struct {
	PostID     int64     `gorm:"primaryKey;autoIncrement:false" json:"post_id"`
	ClientHash string    `gorm:"primaryKey" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Post) TableName() string  { return "opinion_map.posts" }
func (Reply) TableName() string { return "opinion_map.replies" }
func (Like) TableName() string  { return "opinion_map.likes" }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
