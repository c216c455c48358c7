package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QuizStatus tracks the async quiz-generation lifecycle for an article
type QuizStatus string

const (
	QuizStatusPending QuizStatus = "pending"
	QuizStatusReady   QuizStatus = "ready"
	QuizStatusFailed  QuizStatus = "failed"
)

// Article is a persisted, accepted piece of content ready for reading.
type Article struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	Title    string `gorm:"not null" json:"title"`
	Slug     string `gorm:"uniqueIndex;not null" json:"slug"`
	URL      string `gorm:"uniqueIndex;not null" json:"url"`
	Content  string `gorm:"type:text;not null" json:"content"`
	Language string `gorm:"type:varchar(8);not null;index" json:"language"`

	WordCount     int     `json:"word_count" gorm:"default:0"`
	LetterCount   int     `json:"letter_count" gorm:"default:0"`
	ReadingLevel  float64 `json:"reading_level" gorm:"default:0"` // grade-level estimate, set by quiz generation
	TopicCategory string  `gorm:"type:varchar(32);index" json:"topic_category"`

	SourceID        *string    `gorm:"type:uuid;index" json:"source_id,omitempty"`
	PublicationDate *time.Time `json:"publication_date,omitempty"`

	Tags []string `gorm:"serializer:json;type:jsonb" json:"tags"` // e.g., ["economy","inflation"]

	// Quiz payload produced asynchronously after acceptance
	Quiz       json.RawMessage `gorm:"serializer:json;type:jsonb" json:"quiz,omitempty"`
	QuizStatus QuizStatus      `gorm:"type:varchar(16);default:'pending';index" json:"quiz_status"`
	QuizError  string          `gorm:"type:text" json:"quiz_error,omitempty"`

	// Object-store key of the archived raw HTML snapshot, if archiving is on
	SnapshotURL string `gorm:"type:text" json:"snapshot_url,omitempty"`

	Timestamps
}

func (a *Article) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
