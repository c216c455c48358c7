package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContentFingerprint is the dedup ledger: hashed identity of a candidate plus
// enough metadata for similarity and saturation checks. The hash tuple is
// unique; a constraint violation on insert means a concurrent run fingerprinted
// the same content first and the candidate is a duplicate after all.
type ContentFingerprint struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	URLHash     string `gorm:"type:char(64);not null;index;index:idx_fingerprint_tuple,unique" json:"url_hash"`
	TitleHash   string `gorm:"type:char(64);not null;index:idx_fingerprint_tuple,unique" json:"title_hash"`
	ContentHash string `gorm:"type:char(64);not null;index;index:idx_fingerprint_tuple,unique" json:"content_hash"`

	Title         string `gorm:"type:text;not null" json:"title"` // kept for lexical similarity checks
	TopicCategory string `gorm:"type:varchar(32);index" json:"topic_category"`
	Language      string `gorm:"type:varchar(8);index" json:"language"`

	SourceID  *string `gorm:"type:uuid;index" json:"source_id,omitempty"`
	ArticleID *string `gorm:"type:uuid;index" json:"article_id,omitempty"` // nil for rejected-but-tracked candidates

	// L2-normalized hashed bag-of-words vector over title + content head,
	// used for the cheap semantic near-duplicate check
	SemanticVector []float32 `gorm:"serializer:json;type:jsonb" json:"-"`

	FirstSeen time.Time `gorm:"autoCreateTime;index" json:"first_seen"`
	LastSeen  time.Time `gorm:"autoUpdateTime" json:"last_seen"`
}

func (f *ContentFingerprint) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}
