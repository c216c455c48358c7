package services

import (
	"verifast/models"

	"gorm.io/gorm"
)

// AuditReport compares an account's denormalized balances against a full
// ledger replay. Any cache/ledger divergence is resolved by re-deriving from
// the ledger, which is the single source of truth.
type AuditReport struct {
	AccountID             string `json:"account_id"`
	LedgerSpendable       int64  `json:"ledger_spendable"`
	LedgerTotalEarned     int64  `json:"ledger_total_earned"`
	AccountSpendable      int64  `json:"account_spendable"`
	AccountTotalXP        int64  `json:"account_total_xp"`
	AccountLifetimeEarned int64  `json:"account_lifetime_earned"`
	Consistent            bool   `json:"consistent"`
	Entries               int64  `json:"entries"`
}

// LedgerAuditor recomputes expected balances from ledger history and flags
// discrepancies.
type LedgerAuditor struct {
	DB *gorm.DB
}

func NewLedgerAuditor(db *gorm.DB) *LedgerAuditor {
	return &LedgerAuditor{DB: db}
}

// Audit replays every ledger entry for an account in timestamp order.
// Summing all signed amounts must reproduce spendable_xp; summing EARN
// amounts must reproduce total_xp and lifetime_earned.
func (a *LedgerAuditor) Audit(accountID string) (*AuditReport, error) {
	var account models.Account
	if err := a.DB.Where("id = ?", accountID).First(&account).Error; err != nil {
		return nil, err
	}

	var entries []models.LedgerEntry
	if err := a.DB.Where("account_id = ?", accountID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}

	var spendable, earned int64
	for _, e := range entries {
		spendable += e.Amount
		if e.Kind == models.LedgerKindEarn {
			earned += e.Amount
		}
	}

	report := &AuditReport{
		AccountID:             accountID,
		LedgerSpendable:       spendable,
		LedgerTotalEarned:     earned,
		AccountSpendable:      account.SpendableXP,
		AccountTotalXP:        account.TotalXP,
		AccountLifetimeEarned: account.LifetimeEarned,
		Entries:               int64(len(entries)),
	}
	report.Consistent = spendable == account.SpendableXP &&
		earned == account.TotalXP &&
		earned == account.LifetimeEarned
	return report, nil
}
