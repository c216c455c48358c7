package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account is a user's XP-bearing identity (denormalized for performance).
// Balances are mutated only through services.TransactionManager; the ledger
// remains the source of truth and can always reconstruct these fields.
type Account struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"` // links to profile service
	IsStaff        bool   `gorm:"default:false" json:"is_staff"`

	// Balances. TotalXP is lifetime-cumulative and never decreases;
	// SpendableXP fluctuates but never goes below zero.
	TotalXP        int64 `json:"total_xp" gorm:"default:0"`
	SpendableXP    int64 `json:"spendable_xp" gorm:"default:0"`
	LifetimeEarned int64 `json:"lifetime_earned" gorm:"default:0"`
	LifetimeSpent  int64 `json:"lifetime_spent" gorm:"default:0"`

	// Streaks and speed records
	EarningStreak     int        `json:"earning_streak" gorm:"default:0"` // consecutive active days
	LastEarnedAt      *time.Time `json:"last_earned_at,omitempty"`
	MaxWPM            int        `json:"max_wpm" gorm:"default:0"`
	LastSuccessfulWPM int        `json:"last_successful_wpm" gorm:"default:0"`

	// Feature ownership flags (granted permanently once purchased).
	// Staff accounts implicitly own everything regardless of these flags.
	HasTwoWordChunking        bool `json:"has_two_word_chunking" gorm:"default:false"`
	HasThreeWordChunking      bool `json:"has_three_word_chunking" gorm:"default:false"`
	HasSmartConnectorGrouping bool `json:"has_smart_connector_grouping" gorm:"default:false"`
	HasSmartSymbolHandling    bool `json:"has_smart_symbol_handling" gorm:"default:false"`
	HasPremiumFonts           bool `json:"has_premium_fonts" gorm:"default:false"`
	HasDarkMode               bool `json:"has_dark_mode" gorm:"default:false"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// ArticlePrivilege records a perfect-score privilege: a 100% quiz score on an
// article grants free commenting on that article.
type ArticlePrivilege struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID string    `gorm:"index:idx_privilege_account_article,unique;not null" json:"account_id"`
	ArticleID string    `gorm:"index:idx_privilege_account_article,unique;not null" json:"article_id"`
	GrantedAt time.Time `gorm:"autoCreateTime" json:"granted_at"`
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

func (p *ArticlePrivilege) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
