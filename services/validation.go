package services

import (
	"fmt"
	"time"

	"verifast/models"

	"gorm.io/gorm"
)

// Anti-abuse ceilings. These bound the blast radius of a bug or exploit in
// reward calculation, independent of whether the calculation itself is correct.
const (
	MaxTransactionAmount = 10000
	MaxHourlyEarn        = 5000
	MaxTxPerMinute       = 10
	MaxPurchasesPerDay   = 20
)

// ValidationGuard runs pre-flight checks before the TransactionManager
// commits. It never mutates state.
type ValidationGuard struct {
	DB *gorm.DB
}

func NewValidationGuard(db *gorm.DB) *ValidationGuard {
	return &ValidationGuard{DB: db}
}

// Validate checks amount bounds, rate limits and anomaly windows for a
// pending transaction.
func (g *ValidationGuard) Validate(accountID string, amount int64, kind models.LedgerKind) error {
	if amount <= 0 || amount > MaxTransactionAmount {
		return ErrInvalidAmount
	}

	if kind == models.LedgerKindSpend {
		var account models.Account
		if err := g.DB.Select("spendable_xp").Where("id = ?", accountID).First(&account).Error; err != nil {
			return err
		}
		if account.SpendableXP < amount {
			return &InsufficientBalanceError{Required: amount, Available: account.SpendableXP}
		}
	}

	now := time.Now()

	// Rolling 1-hour EARN sum must not exceed MaxHourlyEarn after this tx
	if kind == models.LedgerKindEarn {
		var hourlyEarned int64
		err := g.DB.Model(&models.LedgerEntry{}).
			Where("account_id = ? AND kind = ? AND created_at >= ?",
				accountID, models.LedgerKindEarn, now.Add(-time.Hour)).
			Select("COALESCE(SUM(amount), 0)").Scan(&hourlyEarned).Error
		if err != nil {
			return err
		}
		if hourlyEarned+amount > MaxHourlyEarn {
			return fmt.Errorf("%w: hourly earn limit exceeded", ErrSuspiciousActivity)
		}
	}

	// Trailing 60-second transaction burst
	var recentTx int64
	err := g.DB.Model(&models.LedgerEntry{}).
		Where("account_id = ? AND created_at >= ?", accountID, now.Add(-time.Minute)).
		Count(&recentTx).Error
	if err != nil {
		return err
	}
	if recentTx >= MaxTxPerMinute {
		return fmt.Errorf("%w: transaction rate limit exceeded", ErrSuspiciousActivity)
	}

	// Trailing 24-hour feature purchase burst
	var dailyPurchases int64
	err = g.DB.Model(&models.LedgerEntry{}).
		Where("account_id = ? AND source_category = ? AND created_at >= ?",
			accountID, models.SourceFeaturePurchase, now.Add(-24*time.Hour)).
		Count(&dailyPurchases).Error
	if err != nil {
		return err
	}
	if dailyPurchases >= MaxPurchasesPerDay {
		return fmt.Errorf("%w: daily purchase limit exceeded", ErrSuspiciousActivity)
	}

	return nil
}
