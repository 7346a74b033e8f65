package answers

import (
	"time"

	"github.com/google/uuid"
	"github.com/okayama-voice/opinion-map/internal/posts"
)

// AIResponse is the stored answer of a post. There is at most one per post;
// regeneration overwrites it.
type AIResponse struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	PostID    int64          `gorm:"uniqueIndex;not null" json:"post_id"`
	AIAnswer  string         `gorm:"not null" json:"ai_answer"`
	Sources   []posts.Source `gorm:"type:jsonb;serializer:json" json:"sources"`
	Provider  string         `json:"provider"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (AIResponse) TableName() string { return "opinion_map.ai_responses" }

func (a AIResponse) View() *posts.AnswerView {
	return &posts.AnswerView{Answer: a.AIAnswer, Sources: a.Sources}
}
