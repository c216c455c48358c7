package services

import (
	"testing"
	"time"

	"verifast/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSource(mutate func(*models.ContentSource)) models.ContentSource {
	recent := time.Now().Add(-time.Hour)
	s := models.ContentSource{
		Name:       "Example Feed",
		SourceType: models.SourceTypeRSS,
		Endpoint:   "https://example.com/feed.xml",
		Languages:  []string{"en"},
		Priority:   models.PriorityMedium,
		IsActive:   true,
		Status:     models.SourceStatusActive,

		RequestsPerHour:     60,
		RequestsPerDay:      500,
		LastSuccessfulFetch: &recent,
	}
	if mutate != nil {
		mutate(&s)
	}
	return s
}

func TestHealthScoreDecay(t *testing.T) {
	now := time.Now()

	assert.Equal(t, 100.0, HealthScore(ptrSource(newSource(nil)), now))

	stale := func(age time.Duration) float64 {
		fetched := now.Add(-age)
		return HealthScore(ptrSource(newSource(func(s *models.ContentSource) {
			s.LastSuccessfulFetch = &fetched
		})), now)
	}
	assert.Equal(t, 90.0, stale(7*time.Hour))
	assert.Equal(t, 75.0, stale(13*time.Hour))
	assert.Equal(t, 50.0, stale(25*time.Hour))

	assert.Equal(t, 70.0, HealthScore(ptrSource(newSource(func(s *models.ContentSource) {
		s.ConsecutiveFailures = 3
	})), now))

	assert.Equal(t, 70.0, HealthScore(ptrSource(newSource(func(s *models.ContentSource) {
		s.IsActive = false
	})), now))

	assert.Equal(t, 60.0, HealthScore(ptrSource(newSource(func(s *models.ContentSource) {
		s.Status = models.SourceStatusError
	})), now))
	assert.Equal(t, 80.0, HealthScore(ptrSource(newSource(func(s *models.ContentSource) {
		s.Status = models.SourceStatusRateLimited
	})), now))
	assert.Equal(t, 85.0, HealthScore(ptrSource(newSource(func(s *models.ContentSource) {
		s.Status = models.SourceStatusMaintenance
	})), now))

	// Everything wrong at once clamps at zero
	dead := newSource(func(s *models.ContentSource) {
		old := now.Add(-48 * time.Hour)
		s.LastSuccessfulFetch = &old
		s.ConsecutiveFailures = 6
		s.IsActive = false
		s.Status = models.SourceStatusError
	})
	assert.Equal(t, 0.0, HealthScore(&dead, now))
}

func ptrSource(s models.ContentSource) *models.ContentSource { return &s }

func TestScoreNeutralPerformanceWithoutHistory(t *testing.T) {
	db := setupTestDB(t)
	ranker := NewSourceHealthRanker(db)
	now := time.Now()

	src := newSource(nil)
	require.NoError(t, db.Create(&src).Error)

	ranked := ranker.Score(src, now)
	assert.Equal(t, 100.0, ranked.HealthScore)
	assert.Equal(t, 50.0, ranked.PerformanceScore)
	// 0.3*60 + 0.4*100 + 0.3*50
	assert.InDelta(t, 73.0, ranked.OrchestrationScore, 0.001)
	// 8 * 1.0 * 0.5
	assert.Equal(t, 4, ranked.Quota)
}

func TestScorePerformanceFromMetrics(t *testing.T) {
	db := setupTestDB(t)
	ranker := NewSourceHealthRanker(db)
	now := time.Now()

	src := newSource(func(s *models.ContentSource) { s.Priority = models.PriorityHigh })
	require.NoError(t, db.Create(&src).Error)
	require.NoError(t, db.Create(&models.AcquisitionMetric{
		Date:               startOfDay(now),
		SourceID:           src.ID,
		Language:           "en",
		RequestsMade:       10,
		RequestsFailed:     1,
		ArticlesAccepted:   8,
		ArticlesDuplicated: 1,
		ArticlesRejected:   1,
	}).Error)

	ranked := ranker.Score(src, now)
	// processing 8/10, success 9/10 → (0.8*0.5 + 0.9*0.5)*100 = 85
	assert.InDelta(t, 85.0, ranked.PerformanceScore, 0.001)
	// 12 * 1.0 * 0.85 = 10.2 → 10
	assert.Equal(t, 10, ranked.Quota)
}

func TestScoreQuotaFloor(t *testing.T) {
	db := setupTestDB(t)
	ranker := NewSourceHealthRanker(db)
	now := time.Now()

	src := newSource(func(s *models.ContentSource) {
		s.Priority = models.PriorityLow
		s.Status = models.SourceStatusError
		s.ConsecutiveFailures = 4
	})
	require.NoError(t, db.Create(&src).Error)

	ranked := ranker.Score(src, now)
	assert.Equal(t, 20.0, ranked.HealthScore)
	// 5 * 0.2 * 0.5 = 0.5 → floored
	assert.Equal(t, minSourceQuota, ranked.Quota)
}

func TestRankOrdersAndFiltersByLanguage(t *testing.T) {
	db := setupTestDB(t)
	ranker := NewSourceHealthRanker(db)
	now := time.Now()

	high := newSource(func(s *models.ContentSource) {
		s.Name = "High Priority"
		s.Priority = models.PriorityHigh
	})
	low := newSource(func(s *models.ContentSource) {
		s.Name = "Low Priority"
		s.Priority = models.PriorityLow
	})
	spanish := newSource(func(s *models.ContentSource) {
		s.Name = "Spanish Only"
		s.Languages = []string{"es"}
	})
	inactive := newSource(func(s *models.ContentSource) {
		s.Name = "Switched Off"
		s.IsActive = false
	})
	for _, s := range []*models.ContentSource{&high, &low, &spanish, &inactive} {
		require.NoError(t, db.Create(s).Error)
	}

	ranked, err := ranker.Rank([]string{"en"}, now)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "High Priority", ranked[0].Source.Name)
	assert.Equal(t, "Low Priority", ranked[1].Source.Name)
	assert.Greater(t, ranked[0].OrchestrationScore, ranked[1].OrchestrationScore)

	// No language filter returns every active source
	ranked, err = ranker.Rank(nil, now)
	require.NoError(t, err)
	assert.Len(t, ranked, 3)
}

func TestSourceRateLimitWindows(t *testing.T) {
	now := time.Now()
	src := newSource(func(s *models.ContentSource) { s.RequestsPerHour = 2 })

	require.True(t, src.CanMakeRequest(now))
	src.RecordRequest(true, now)
	src.RecordRequest(true, now)
	assert.False(t, src.CanMakeRequest(now), "hourly budget exhausted")

	// The window rolls over an hour later
	assert.True(t, src.CanMakeRequest(now.Add(61*time.Minute)))
	assert.Zero(t, src.CurrentHourRequests)
}

func TestRecordRequestHealthTransitions(t *testing.T) {
	now := time.Now()
	src := newSource(nil)

	for i := 0; i < 5; i++ {
		src.RecordRequest(false, now)
	}
	assert.Equal(t, 5, src.ConsecutiveFailures)
	assert.Equal(t, models.SourceStatusError, src.Status)

	src.RecordRequest(true, now)
	assert.Zero(t, src.ConsecutiveFailures)
	assert.Equal(t, models.SourceStatusActive, src.Status)
	require.NotNil(t, src.LastSuccessfulFetch)
}
