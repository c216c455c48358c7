package services

import (
	"testing"

	"verifast/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens an isolated in-memory database with the full schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Account{},
		&models.ArticlePrivilege{},
		&models.LedgerEntry{},
		&models.Article{},
		&models.QuizAttempt{},
		&models.Comment{},
		&models.CommentInteraction{},
		&models.FeaturePurchase{},
		&models.FeaturePriceOverride{},
		&models.ContentSource{},
		&models.ContentFingerprint{},
		&models.ContentAcquisitionJob{},
		&models.AcquisitionMetric{},
	))
	return db
}

func newTestTx(t *testing.T, db *gorm.DB) *TransactionManager {
	t.Helper()
	cache, err := NewCacheService("")
	require.NoError(t, err)
	return NewTransactionManager(db, cache)
}

func createTestAccount(t *testing.T, db *gorm.DB, mutate func(*models.Account)) *models.Account {
	t.Helper()
	account := &models.Account{ID: uuid.NewString()}
	account.ExternalUserID = "ext-" + account.ID
	if mutate != nil {
		mutate(account)
	}
	require.NoError(t, db.Create(account).Error)
	return account
}
