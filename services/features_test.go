package services

import (
	"context"
	"testing"

	"verifast/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFeatureService(t *testing.T, db *TransactionManager) *FeatureService {
	t.Helper()
	s, err := NewFeatureService(db.DB, db)
	require.NoError(t, err)
	return s
}

func TestPurchaseHappyPath(t *testing.T) {
	db := setupTestDB(t)
	tm := newTestTx(t, db)
	features := newTestFeatureService(t, tm)
	account := createTestAccount(t, db, func(a *models.Account) { a.SpendableXP = 100; a.TotalXP = 100; a.LifetimeEarned = 100 })
	ctx := context.Background()

	purchase, err := features.Purchase(ctx, account.ID, FeatureDarkMode)
	require.NoError(t, err)
	assert.Equal(t, int64(30), purchase.PricePaid)
	require.NotNil(t, purchase.LedgerEntryID)

	var reloaded models.Account
	require.NoError(t, db.First(&reloaded, "id = ?", account.ID).Error)
	assert.True(t, reloaded.HasDarkMode)
	assert.Equal(t, int64(70), reloaded.SpendableXP)
	assert.Equal(t, int64(100), reloaded.TotalXP)

	var entry models.LedgerEntry
	require.NoError(t, db.First(&entry, "id = ?", *purchase.LedgerEntryID).Error)
	assert.Equal(t, models.SourceFeaturePurchase, entry.SourceCategory)
	require.NotNil(t, entry.FeatureKey)
	assert.Equal(t, FeatureDarkMode, *entry.FeatureKey)
}

func TestPurchaseUnknownFeature(t *testing.T) {
	db := setupTestDB(t)
	tm := newTestTx(t, db)
	features := newTestFeatureService(t, tm)
	account := createTestAccount(t, db, nil)

	_, err := features.Purchase(context.Background(), account.ID, "x_ray_vision")
	assert.ErrorIs(t, err, ErrInvalidFeature)
}

func TestPurchaseAlreadyOwned(t *testing.T) {
	db := setupTestDB(t)
	tm := newTestTx(t, db)
	features := newTestFeatureService(t, tm)
	account := createTestAccount(t, db, func(a *models.Account) { a.HasDarkMode = true; a.SpendableXP = 100 })

	_, err := features.Purchase(context.Background(), account.ID, FeatureDarkMode)
	assert.ErrorIs(t, err, ErrFeatureAlreadyOwned)
}

func TestPurchasePrerequisiteEnforced(t *testing.T) {
	db := setupTestDB(t)
	tm := newTestTx(t, db)
	features := newTestFeatureService(t, tm)
	account := createTestAccount(t, db, func(a *models.Account) { a.SpendableXP = 1000 })
	ctx := context.Background()

	// 3-word chunking requires 2-word chunking first
	_, err := features.Purchase(ctx, account.ID, FeatureThreeWordChunking)
	assert.ErrorIs(t, err, ErrPrerequisiteMissing)

	_, err = features.Purchase(ctx, account.ID, FeatureTwoWordChunking)
	require.NoError(t, err)

	_, err = features.Purchase(ctx, account.ID, FeatureThreeWordChunking)
	require.NoError(t, err)

	var reloaded models.Account
	require.NoError(t, db.First(&reloaded, "id = ?", account.ID).Error)
	assert.True(t, reloaded.HasThreeWordChunking)
	assert.Equal(t, int64(1000-50-100), reloaded.SpendableXP)
}

func TestPurchaseInsufficientBalance(t *testing.T) {
	db := setupTestDB(t)
	tm := newTestTx(t, db)
	features := newTestFeatureService(t, tm)
	account := createTestAccount(t, db, func(a *models.Account) { a.SpendableXP = 10 })

	_, err := features.Purchase(context.Background(), account.ID, FeatureDarkMode)
	var insufficient *InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)

	// Ownership flag untouched on refusal
	var reloaded models.Account
	require.NoError(t, db.First(&reloaded, "id = ?", account.ID).Error)
	assert.False(t, reloaded.HasDarkMode)
}

func TestPurchaseDuplicateRowRollsBackSpend(t *testing.T) {
	db := setupTestDB(t)
	tm := newTestTx(t, db)
	features := newTestFeatureService(t, tm)
	account := createTestAccount(t, db, func(a *models.Account) { a.SpendableXP = 100; a.TotalXP = 100; a.LifetimeEarned = 100 })

	// A concurrent checkout that committed between this request's ownership
	// check and its charge: the purchase row exists but the flag read was
	// stale.
	require.NoError(t, db.Create(&models.FeaturePurchase{
		AccountID: account.ID, FeatureKey: FeatureDarkMode, PricePaid: 30,
	}).Error)

	_, err := features.Purchase(context.Background(), account.ID, FeatureDarkMode)
	assert.ErrorIs(t, err, ErrFeatureAlreadyOwned)

	var reloaded models.Account
	require.NoError(t, db.First(&reloaded, "id = ?", account.ID).Error)
	assert.Equal(t, int64(100), reloaded.SpendableXP, "the charge rolls back with the duplicate row")
	assert.False(t, reloaded.HasDarkMode)

	var spends int64
	require.NoError(t, db.Model(&models.LedgerEntry{}).
		Where("account_id = ? AND kind = ?", account.ID, models.LedgerKindSpend).
		Count(&spends).Error)
	assert.Zero(t, spends)
}

func TestStaffPurchaseIsFreeAndSkipsPrerequisites(t *testing.T) {
	db := setupTestDB(t)
	tm := newTestTx(t, db)
	features := newTestFeatureService(t, tm)
	account := createTestAccount(t, db, func(a *models.Account) { a.IsStaff = true })

	purchase, err := features.Purchase(context.Background(), account.ID, FeatureThreeWordChunking)
	require.NoError(t, err)
	assert.Zero(t, purchase.PricePaid)
	assert.Nil(t, purchase.LedgerEntryID)

	var reloaded models.Account
	require.NoError(t, db.First(&reloaded, "id = ?", account.ID).Error)
	assert.True(t, reloaded.HasThreeWordChunking)
	assert.Zero(t, reloaded.SpendableXP)
}

func TestOwnershipStaffOwnsEverything(t *testing.T) {
	staff := &models.Account{IsStaff: true}
	owned := Ownership(staff)
	for key, has := range owned {
		assert.True(t, has, "staff should own %s", key)
	}

	regular := &models.Account{HasDarkMode: true}
	owned = Ownership(regular)
	assert.True(t, owned[FeatureDarkMode])
	assert.False(t, owned[FeaturePremiumFonts])
}

func TestAdjustPriceOverridesCatalog(t *testing.T) {
	db := setupTestDB(t)
	tm := newTestTx(t, db)
	features := newTestFeatureService(t, tm)

	require.NoError(t, features.AdjustPrice(FeatureDarkMode, 99, "admin-1"))

	def, ok := features.Catalog().Get(FeatureDarkMode)
	require.True(t, ok)
	assert.Equal(t, int64(99), def.Cost)

	// A second adjustment updates the same override row
	require.NoError(t, features.AdjustPrice(FeatureDarkMode, 45, "admin-1"))
	def, _ = features.Catalog().Get(FeatureDarkMode)
	assert.Equal(t, int64(45), def.Cost)

	var overrides int64
	require.NoError(t, db.Model(&models.FeaturePriceOverride{}).Count(&overrides).Error)
	assert.Equal(t, int64(1), overrides)

	assert.ErrorIs(t, features.AdjustPrice("nope", 10, "admin-1"), ErrInvalidFeature)
	assert.ErrorIs(t, features.AdjustPrice(FeatureDarkMode, 0, "admin-1"), ErrInvalidAmount)
}

func TestRecommendSkipsLockedChains(t *testing.T) {
	db := setupTestDB(t)
	tm := newTestTx(t, db)
	features := newTestFeatureService(t, tm)

	account := &models.Account{SpendableXP: 60}
	recs := features.Recommend(account)

	keys := make(map[string]bool, len(recs))
	for _, r := range recs {
		keys[r.Key] = true
	}
	assert.True(t, keys[FeatureTwoWordChunking])
	assert.False(t, keys[FeatureThreeWordChunking], "prerequisite not met yet")
	assert.False(t, keys[FeatureSmartConnectorGrouping])

	for _, r := range recs {
		if r.Key == FeatureTwoWordChunking {
			assert.True(t, r.Affordable)
		}
		if r.Key == FeatureSmartSymbolHandling {
			assert.True(t, r.Affordable) // costs exactly 60
		}
	}

	// Owning the prerequisite unlocks the chain
	account.HasTwoWordChunking = true
	recs = features.Recommend(account)
	keys = map[string]bool{}
	for _, r := range recs {
		keys[r.Key] = true
	}
	assert.True(t, keys[FeatureThreeWordChunking])
	assert.False(t, keys[FeatureTwoWordChunking], "owned features are not recommended")
}
