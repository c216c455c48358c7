package services

import (
	"context"
	"testing"

	"verifast/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditConsistentAfterActivity(t *testing.T) {
	db := setupTestDB(t)
	tm := newTestTx(t, db)
	auditor := NewLedgerAuditor(db)
	account := createTestAccount(t, db, nil)
	ctx := context.Background()

	_, err := tm.Earn(ctx, account.ID, 200, models.SourceQuizCompletion, "quiz", LedgerRef{})
	require.NoError(t, err)
	_, err = tm.Earn(ctx, account.ID, 50, models.SourceStreakBonus, "streak", LedgerRef{})
	require.NoError(t, err)
	_, err = tm.Spend(ctx, account.ID, 80, models.SourceFeaturePurchase, "feature", LedgerRef{})
	require.NoError(t, err)

	report, err := auditor.Audit(account.ID)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Equal(t, int64(170), report.LedgerSpendable)
	assert.Equal(t, int64(250), report.LedgerTotalEarned)
	assert.Equal(t, int64(3), report.Entries)
}

func TestAuditFlagsTamperedBalance(t *testing.T) {
	db := setupTestDB(t)
	tm := newTestTx(t, db)
	auditor := NewLedgerAuditor(db)
	account := createTestAccount(t, db, nil)
	ctx := context.Background()

	_, err := tm.Earn(ctx, account.ID, 100, models.SourceQuizCompletion, "quiz", LedgerRef{})
	require.NoError(t, err)

	// Balance drift with no matching ledger entry
	require.NoError(t, db.Model(&models.Account{}).
		Where("id = ?", account.ID).
		Update("spendable_xp", 9999).Error)

	report, err := auditor.Audit(account.ID)
	require.NoError(t, err)
	assert.False(t, report.Consistent)
	assert.Equal(t, int64(100), report.LedgerSpendable)
	assert.Equal(t, int64(9999), report.AccountSpendable)
}

func TestAuditEmptyAccountIsConsistent(t *testing.T) {
	db := setupTestDB(t)
	auditor := NewLedgerAuditor(db)
	account := createTestAccount(t, db, nil)

	report, err := auditor.Audit(account.ID)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Zero(t, report.Entries)
}
