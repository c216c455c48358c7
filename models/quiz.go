package models

import (
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QuizAttempt is one grading event. Immutable after creation except for
// XPAwarded, which the reward pipeline sets exactly once. Answers and
// QuizSnapshot are kept verbatim for replay/audit.
type QuizAttempt struct {
	ID        string `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID string `gorm:"index;not null" json:"account_id"`
	ArticleID string `gorm:"index;not null" json:"article_id"`

	Score     float64 `json:"score" gorm:"default:0"` // 0-100, graded server-side
	WPMUsed   int     `json:"wpm_used" gorm:"default:0"`
	XPAwarded int64   `json:"xp_awarded" gorm:"default:0"`

	Answers      json.RawMessage `gorm:"serializer:json;type:jsonb" json:"answers"`
	QuizSnapshot json.RawMessage `gorm:"serializer:json;type:jsonb" json:"quiz_snapshot"`

	// Reading timing as reported by the client (seconds); informational only
	ReadingTimeSeconds int `json:"reading_time_seconds" gorm:"default:0"`

	Timestamps
}

func (a *QuizAttempt) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
