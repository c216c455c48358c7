package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LedgerKind indicates the direction of an XP movement
type LedgerKind string

const (
	LedgerKindEarn  LedgerKind = "EARN"
	LedgerKindSpend LedgerKind = "SPEND"
)

// SourceCategory is the business reason for an XP movement
type SourceCategory string

const (
	SourceQuizCompletion    SourceCategory = "quiz_completion"
	SourcePerfectBonus      SourceCategory = "perfect_bonus"
	SourceWPMRecord         SourceCategory = "wpm_record"
	SourceStreakBonus       SourceCategory = "streak_bonus"
	SourceCommentPost       SourceCategory = "comment_post"
	SourceCommentReply      SourceCategory = "comment_reply"
	SourceInteractionBronze SourceCategory = "interaction_bronze"
	SourceInteractionSilver SourceCategory = "interaction_silver"
	SourceInteractionGold   SourceCategory = "interaction_gold"
	SourceInteractionReward SourceCategory = "interaction_reward"
	SourceFeaturePurchase   SourceCategory = "feature_purchase"
	SourceAdminAdjustment   SourceCategory = "admin_adjustment"
)

// LedgerEntry is one immutable XP movement. Amount is signed: positive for
// EARN, negative for SPEND. BalanceAfter snapshots the account's spendable
// balance immediately after this entry was written, so replaying the ledger
// in timestamp order must reproduce the live balance.
type LedgerEntry struct {
	ID             string         `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID      string         `gorm:"index;not null" json:"account_id"`
	Kind           LedgerKind     `gorm:"type:varchar(8);not null" json:"kind"`
	Amount         int64          `gorm:"not null" json:"amount"`
	SourceCategory SourceCategory `gorm:"type:varchar(32);not null;index" json:"source_category"`
	Description    string         `gorm:"type:text" json:"description"`
	BalanceAfter   int64          `gorm:"not null" json:"balance_after"`

	// Optional references to the triggering entity
	QuizAttemptID *string `gorm:"type:uuid" json:"quiz_attempt_id,omitempty"`
	CommentID     *string `gorm:"type:uuid" json:"comment_id,omitempty"`
	FeatureKey    *string `gorm:"type:varchar(64)" json:"feature_key,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (e *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
