package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InteractionType is the tier of a comment interaction
type InteractionType string

const (
	InteractionBronze InteractionType = "bronze"
	InteractionSilver InteractionType = "silver"
	InteractionGold   InteractionType = "gold"
)

// Comment is a user comment on an article. Posting costs XP unless the
// commenter holds a perfect-score privilege for the article.
type Comment struct {
	ID        string  `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID string  `gorm:"index;not null" json:"account_id"`
	ArticleID string  `gorm:"index;not null" json:"article_id"`
	ParentID  *string `gorm:"type:uuid;index" json:"parent_id,omitempty"`

	Content            string `gorm:"type:text;not null" json:"content"`
	IsPerfectScoreFree bool   `gorm:"default:false" json:"is_perfect_score_free"`
	XPCost             int64  `json:"xp_cost" gorm:"default:0"`

	Timestamps
}

// CommentInteraction records a paid reaction to a comment. The requester's
// spend and the author's reward are two sequential transactions;
// RewardSettled marks whether the author-earn side has been written, so the
// reconciliation sweep can replay a missing reward after a crash.
type CommentInteraction struct {
	ID        string          `gorm:"primaryKey;type:uuid" json:"id"`
	CommentID string          `gorm:"index:idx_interaction_comment_account,unique;not null" json:"comment_id"`
	AccountID string          `gorm:"index:idx_interaction_comment_account,unique;not null" json:"account_id"`
	Type      InteractionType `gorm:"type:varchar(8);not null" json:"type"`

	XPCost        int64 `json:"xp_cost" gorm:"default:0"`
	AuthorReward  int64 `json:"author_reward" gorm:"default:0"`
	RewardSettled bool  `gorm:"default:false;index" json:"reward_settled"`

	Timestamps
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

func (i *CommentInteraction) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}
