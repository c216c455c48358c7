package workers

import (
	"testing"

	"verifast/models"
	"verifast/services"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens an isolated in-memory database with the pipeline schema.
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
		&models.Article{},
		&models.ContentSource{},
		&models.ContentFingerprint{},
		&models.ContentAcquisitionJob{},
		&models.AcquisitionMetric{},
	))
	return db
}

func disabledCache(t *testing.T) *services.CacheService {
	t.Helper()
	cache, err := services.NewCacheService("")
	require.NoError(t, err)
	return cache
}
