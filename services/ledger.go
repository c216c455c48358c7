package services

import (
	"context"
	"log"
	"strings"
	"time"

	"verifast/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	txMaxAttempts = 3
	txBackoffStep = 100 * time.Millisecond
)

// LedgerRef carries optional references from a ledger entry back to the
// entity that triggered it.
type LedgerRef struct {
	QuizAttemptID *string
	CommentID     *string
	FeatureKey    *string
}

// TransactionManager orchestrates atomic earn/spend operations. Every
// mutation locks the account row, updates denormalized balances, writes the
// ledger entry with a balance snapshot, and invalidates the advisory cache.
type TransactionManager struct {
	DB    *gorm.DB
	Cache *CacheService
	Guard *ValidationGuard
}

func NewTransactionManager(db *gorm.DB, cache *CacheService) *TransactionManager {
	return &TransactionManager{
		DB:    db,
		Cache: cache,
		Guard: NewValidationGuard(db),
	}
}

// lockAccount reads the account row under FOR UPDATE where the dialect
// supports it (postgres); sqlite serializes writes on its own.
func (m *TransactionManager) lockAccount(tx *gorm.DB, accountID string) (*models.Account, error) {
	var account models.Account
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.Where("id = ?", accountID).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// isLockConflict reports whether an error is a transient lock/serialization
// failure worth retrying.
func isLockConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "deadlock detected") ||
		strings.Contains(msg, "could not serialize") ||
		strings.Contains(msg, "lock not available") ||
		strings.Contains(msg, "database is locked")
}

// withRetry runs fn up to txMaxAttempts times with linear backoff on lock
// conflicts, surfacing ErrConcurrentTransaction when retries exhaust.
func (m *TransactionManager) withRetry(fn func() error) error {
	var err error
	for attempt := 1; attempt <= txMaxAttempts; attempt++ {
		err = fn()
		if err == nil || !isLockConflict(err) {
			return err
		}
		log.Printf("⚠️  transaction conflict (attempt %d/%d): %v", attempt, txMaxAttempts, err)
		time.Sleep(txBackoffStep * time.Duration(attempt))
	}
	return ErrConcurrentTransaction
}

// Earn credits an account. TotalXP, SpendableXP and LifetimeEarned all grow
// by amount; spending never touches TotalXP, so total_xp == lifetime_earned
// holds for every account.
func (m *TransactionManager) Earn(ctx context.Context, accountID string, amount int64, category models.SourceCategory, description string, ref LedgerRef) (*models.LedgerEntry, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := m.Guard.Validate(accountID, amount, models.LedgerKindEarn); err != nil {
		return nil, err
	}

	var entry *models.LedgerEntry
	err := m.withRetry(func() error {
		return m.DB.Transaction(func(tx *gorm.DB) error {
			account, err := m.lockAccount(tx, accountID)
			if err != nil {
				return err
			}

			now := time.Now()
			account.TotalXP += amount
			account.SpendableXP += amount
			account.LifetimeEarned += amount
			account.LastEarnedAt = &now
			if err := tx.Save(account).Error; err != nil {
				return err
			}

			e := models.LedgerEntry{
				AccountID:      accountID,
				Kind:           models.LedgerKindEarn,
				Amount:         amount,
				SourceCategory: category,
				Description:    description,
				BalanceAfter:   account.SpendableXP,
				QuizAttemptID:  ref.QuizAttemptID,
				CommentID:      ref.CommentID,
				FeatureKey:     ref.FeatureKey,
			}
			if err := tx.Create(&e).Error; err != nil {
				return err
			}
			entry = &e
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	m.Cache.InvalidateAccount(ctx, accountID)
	return entry, nil
}

// Spend debits an account's spendable balance. Staff accounts short-circuit
// to a zero-cost no-op success (nil entry) — an explicit business rule.
func (m *TransactionManager) Spend(ctx context.Context, accountID string, amount int64, category models.SourceCategory, description string, ref LedgerRef) (*models.LedgerEntry, error) {
	return m.SpendWith(ctx, accountID, amount, category, description, ref, nil)
}

// SpendWith debits like Spend and additionally runs apply inside the same
// database transaction, so rows that depend on the charge commit or roll
// back together with it. apply receives the ledger entry, or nil when the
// charge was waived for a staff account; apply still runs transactionally
// in that case.
func (m *TransactionManager) SpendWith(ctx context.Context, accountID string, amount int64, category models.SourceCategory, description string, ref LedgerRef, apply func(tx *gorm.DB, entry *models.LedgerEntry) error) (*models.LedgerEntry, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var staff bool
	if err := m.DB.Model(&models.Account{}).Where("id = ?", accountID).
		Pluck("is_staff", &staff).Error; err != nil {
		return nil, err
	}
	if staff {
		log.Printf("💳 staff account %s: spend of %d XP waived (%s)", accountID, amount, category)
		if apply != nil {
			if err := m.DB.Transaction(func(tx *gorm.DB) error { return apply(tx, nil) }); err != nil {
				return nil, err
			}
			m.Cache.InvalidateAccount(ctx, accountID)
		}
		return nil, nil
	}

	if err := m.Guard.Validate(accountID, amount, models.LedgerKindSpend); err != nil {
		return nil, err
	}

	var entry *models.LedgerEntry
	err := m.withRetry(func() error {
		entry = nil
		return m.DB.Transaction(func(tx *gorm.DB) error {
			account, err := m.lockAccount(tx, accountID)
			if err != nil {
				return err
			}

			if account.SpendableXP < amount {
				return &InsufficientBalanceError{Required: amount, Available: account.SpendableXP}
			}

			account.SpendableXP -= amount
			account.LifetimeSpent += amount
			if err := tx.Save(account).Error; err != nil {
				return err
			}

			e := models.LedgerEntry{
				AccountID:      accountID,
				Kind:           models.LedgerKindSpend,
				Amount:         -amount,
				SourceCategory: category,
				Description:    description,
				BalanceAfter:   account.SpendableXP,
				QuizAttemptID:  ref.QuizAttemptID,
				CommentID:      ref.CommentID,
				FeatureKey:     ref.FeatureKey,
			}
			if err := tx.Create(&e).Error; err != nil {
				return err
			}
			entry = &e
			if apply != nil {
				return apply(tx, entry)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	m.Cache.InvalidateAccount(ctx, accountID)
	return entry, nil
}

// GetBalance returns the balance snapshot, preferring the advisory cache.
func (m *TransactionManager) GetBalance(ctx context.Context, accountID string) (BalanceSnapshot, error) {
	if snap := m.Cache.GetBalance(ctx, accountID); snap != nil {
		return *snap, nil
	}
	var account models.Account
	if err := m.DB.Where("id = ?", accountID).First(&account).Error; err != nil {
		return BalanceSnapshot{}, err
	}
	snap := BalanceSnapshot{TotalXP: account.TotalXP, SpendableXP: account.SpendableXP}
	m.Cache.SetBalance(ctx, accountID, snap)
	return snap, nil
}

// History returns a page of ledger entries, newest first.
func (m *TransactionManager) History(accountID string, page, size int) ([]models.LedgerEntry, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	var total int64
	if err := m.DB.Model(&models.LedgerEntry{}).Where("account_id = ?", accountID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []models.LedgerEntry
	err := m.DB.Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(size).Offset((page - 1) * size).
		Find(&entries).Error
	return entries, total, err
}
